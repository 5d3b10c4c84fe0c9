package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/driver/drivertest"
	"github.com/daryltucker/vecbench/internal/metrics"
	"github.com/daryltucker/vecbench/internal/model"
)

// stubSampler reports memory growing by 1.5 MB per reading.
type stubSampler struct {
	reads  atomic.Int64
	memErr error
}

func (s *stubSampler) MemoryMB() (float64, error) {
	if s.memErr != nil {
		return 0, s.memErr
	}
	n := s.reads.Add(1)
	return 100 + 1.5*float64(n-1), nil
}

func (s *stubSampler) CPUPercent() (float64, error) { return 12.5, nil }

func vectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(i*dim + j)
		}
		out[i] = v
	}
	return out
}

func connected(t *testing.T, name string) *drivertest.Driver {
	t.Helper()
	d := drivertest.New(name)
	require.NoError(t, d.Connect(context.Background()))
	return d
}

// seeded returns a connected driver whose bench_<dataset> collection
// already holds a few vectors of dimension dim.
func seeded(t *testing.T, dataset string, dim int) *drivertest.Driver {
	t.Helper()
	d := connected(t, "fake")
	ctx := context.Background()
	require.NoError(t, d.CreateCollection(ctx, CollectionName(dataset), dim))
	require.NoError(t, d.InsertVectors(ctx, CollectionName(dataset), vectors(20, dim), nil, 10))
	return d
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "bench_small", CollectionName("small"))
}

func TestBenchmarkInsertPassesEveryVector(t *testing.T) {
	d := connected(t, "fake")
	o := NewOrchestrator(d, &stubSampler{})

	md := make([]driver.Metadata, 1000)
	for i := range md {
		md[i] = driver.Metadata{"i": i}
	}
	r, err := o.BenchmarkInsert(context.Background(), "small", vectors(1000, 4), md, 100)
	require.NoError(t, err)

	calls := d.Calls()
	assert.Equal(t, 1, calls.Insert)
	assert.Equal(t, 1000, calls.InsertedVectors)
	assert.Len(t, d.Batches(), 10)
	assert.Equal(t, 1000, d.Size("bench_small"))

	assert.Equal(t, "fake", r.Backend)
	assert.Equal(t, model.OpInsert, r.Operation)
	assert.Equal(t, "small", r.Dataset)
	assert.Equal(t, 1000, r.Count)
	assert.Equal(t, 100, r.Metadata["batch_size"])
	assert.InDelta(t, 1.5, r.MemoryDeltaMB, 1e-9)
	assert.Equal(t, 12.5, r.CPUPercent)
	assert.Zero(t, r.LatencyP50)
	assert.Zero(t, r.LatencyP99)
	if r.DurationSeconds > 0 {
		assert.InDelta(t, 1000/r.DurationSeconds, r.Throughput, 1e-6)
	}
}

func TestBenchmarkInsertRecreatesCollection(t *testing.T) {
	d := connected(t, "fake")
	o := NewOrchestrator(d, &stubSampler{})
	ctx := context.Background()

	_, err := o.BenchmarkInsert(ctx, "small", vectors(50, 4), nil, 10)
	require.NoError(t, err)
	_, err = o.BenchmarkInsert(ctx, "small", vectors(50, 4), nil, 25)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Calls().Create)
	assert.Equal(t, 50, d.Size("bench_small"))
}

func TestBenchmarkInsertValidation(t *testing.T) {
	cases := map[string]struct {
		vectors [][]float32
		md      []driver.Metadata
		batch   int
	}{
		"zero batch":         {vectors(10, 4), nil, 0},
		"no vectors":         {nil, nil, 10},
		"ragged":             {[][]float32{{1, 2}, {1}}, nil, 10},
		"metadata too short": {vectors(3, 2), []driver.Metadata{{}}, 10},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := connected(t, "fake")
			o := NewOrchestrator(d, &stubSampler{})
			_, err := o.BenchmarkInsert(context.Background(), "small", tc.vectors, tc.md, tc.batch)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInput))
			assert.Zero(t, d.Calls().Create, "driver must not be touched")
		})
	}
}

func TestBenchmarkSearchWarmupIsNotTimed(t *testing.T) {
	d := seeded(t, "small", 4)
	o := NewOrchestrator(d, &stubSampler{})
	before := d.Calls()

	r, err := o.BenchmarkSearch(context.Background(), "small", vectors(50, 4), 5, 10)
	require.NoError(t, err)

	after := d.Calls()
	assert.Equal(t, 50, after.Search-before.Search, "10 warmup + 40 timed single-query calls")
	assert.Equal(t, 50, after.SearchQueries-before.SearchQueries)

	assert.Equal(t, model.OpSearch, r.Operation)
	assert.Equal(t, 40, r.Count)
	assert.Equal(t, 40, r.Metadata["queries"])
	assert.Equal(t, 5, r.Metadata["top_k"])
	assert.LessOrEqual(t, r.LatencyP50, r.LatencyP90)
	assert.LessOrEqual(t, r.LatencyP90, r.LatencyP95)
	assert.LessOrEqual(t, r.LatencyP95, r.LatencyP99)
}

func TestBenchmarkSearchDurationIsLatencySum(t *testing.T) {
	d := seeded(t, "small", 2)
	d.SearchDelay = 2 * time.Millisecond
	o := NewOrchestrator(d, &stubSampler{})

	r, err := o.BenchmarkSearch(context.Background(), "small", vectors(12, 2), 3, 2)
	require.NoError(t, err)
	require.Equal(t, 10, r.Count)

	// Ten calls of at least 2ms each.
	assert.GreaterOrEqual(t, r.DurationSeconds, 0.02)
	assert.GreaterOrEqual(t, r.LatencyP50, 2.0)
	assert.InDelta(t, 10/r.DurationSeconds, r.Throughput, 1e-6)
}

func TestBenchmarkSearchValidation(t *testing.T) {
	cases := map[string]struct {
		queries, topK, warmup int
	}{
		"zero top_k":       {20, 0, 5},
		"zero warmup":      {20, 5, 0},
		"nothing to time":  {10, 5, 10},
		"warmup too large": {3, 5, 10},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d := seeded(t, "small", 2)
			o := NewOrchestrator(d, &stubSampler{})
			before := d.Calls().Search
			_, err := o.BenchmarkSearch(context.Background(), "small", vectors(tc.queries, 2), tc.topK, tc.warmup)
			assert.True(t, errors.Is(err, model.ErrInput))
			assert.Equal(t, before, d.Calls().Search)
		})
	}
}

func TestBenchmarkConcurrentSearchDropsRemainder(t *testing.T) {
	d := seeded(t, "small", 4)
	o := NewOrchestrator(d, &stubSampler{})
	before := d.Calls()

	r, err := o.BenchmarkConcurrentSearch(context.Background(), "small", vectors(97, 4), 10, 10)
	require.NoError(t, err)

	after := d.Calls()
	assert.Equal(t, 90, after.SearchQueries-before.SearchQueries)
	assert.Equal(t, model.OpConcurrentSearch, r.Operation)
	assert.Equal(t, 90, r.Count)
	assert.Equal(t, 10, r.Metadata["concurrent"])
	assert.Equal(t, 90, r.Metadata["queries"])
	assert.Equal(t, 7, r.Metadata["dropped"])
	assert.LessOrEqual(t, r.LatencyP50, r.LatencyP99)
}

func TestBenchmarkConcurrentSearchWallClock(t *testing.T) {
	d := seeded(t, "small", 2)
	d.SearchDelay = 20 * time.Millisecond
	o := NewOrchestrator(d, &stubSampler{})

	r, err := o.BenchmarkConcurrentSearch(context.Background(), "small", vectors(8, 2), 3, 4)
	require.NoError(t, err)
	require.Equal(t, 8, r.Count)

	// Four workers with two 20ms queries each; a latency sum would be >=160ms.
	assert.GreaterOrEqual(t, r.DurationSeconds, 0.04)
	assert.Less(t, r.DurationSeconds, 0.16)
}

func TestBenchmarkConcurrentSearchTooFewQueries(t *testing.T) {
	d := seeded(t, "small", 2)
	o := NewOrchestrator(d, &stubSampler{})
	_, err := o.BenchmarkConcurrentSearch(context.Background(), "small", vectors(5, 2), 3, 10)
	assert.True(t, errors.Is(err, model.ErrInput))

	_, err = o.BenchmarkConcurrentSearch(context.Background(), "small", vectors(5, 2), 3, 0)
	assert.True(t, errors.Is(err, model.ErrInput))
}

func TestBenchmarkConcurrentSearchWorkerFailure(t *testing.T) {
	d := seeded(t, "small", 2)
	d.SearchErr = errors.New("shard unavailable")
	d.FailSearchAfter = 5
	o := NewOrchestrator(d, &stubSampler{})

	_, err := o.BenchmarkConcurrentSearch(context.Background(), "small", vectors(40, 2), 3, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOperation))

	var se *ScenarioError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "fake", se.Backend)
	assert.Equal(t, "concurrent_search", se.Scenario)
}

func TestCallTimeout(t *testing.T) {
	d := seeded(t, "small", 2)
	d.SearchDelay = time.Second
	o := NewOrchestrator(d, &stubSampler{}, WithCallTimeout(10*time.Millisecond))

	start := time.Now()
	_, err := o.BenchmarkSearch(context.Background(), "small", vectors(5, 2), 3, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTimeout))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestUnclassifiedErrorsAreMarked(t *testing.T) {
	d := &rawErrDriver{Driver: seeded(t, "small", 2)}
	o := NewOrchestrator(d, &stubSampler{})
	_, err := o.BenchmarkSearch(context.Background(), "small", vectors(5, 2), 3, 1)
	assert.True(t, errors.Is(err, model.ErrOperation))
}

// rawErrDriver returns a plain error from SearchVectors.
type rawErrDriver struct {
	*drivertest.Driver
}

func (d *rawErrDriver) SearchVectors(context.Context, string, [][]float32, int) ([][]driver.Match, error) {
	return nil, errors.New("socket closed")
}

func TestSamplerFailureAbandonsScenario(t *testing.T) {
	d := connected(t, "fake")
	o := NewOrchestrator(d, &stubSampler{memErr: errors.New("no procfs")})
	_, err := o.BenchmarkInsert(context.Background(), "small", vectors(10, 2), nil, 5)
	assert.Error(t, err)
}

func TestCleanupSwallowsErrors(t *testing.T) {
	d := connected(t, "fake")
	d.DeleteErr = errors.New("locked")
	o := NewOrchestrator(d, &stubSampler{})
	o.Cleanup(context.Background(), "small")
	assert.Equal(t, 1, d.Calls().Delete)
}

func TestMetricsRecorded(t *testing.T) {
	d := seeded(t, "small", 2)
	c := metrics.New()
	o := NewOrchestrator(d, &stubSampler{}, WithMetrics(c))

	_, err := o.BenchmarkSearch(context.Background(), "small", vectors(6, 2), 3, 1)
	require.NoError(t, err)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["vecbench_driver_call_seconds"])
	assert.True(t, names["vecbench_scenario_results_total"])
}
