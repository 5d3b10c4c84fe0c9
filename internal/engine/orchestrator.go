/*
PURPOSE:
  The benchmark orchestrator. Runs the three scenarios (insert, search,
  concurrent search) against one connected driver and turns timed calls
  into BenchmarkResult records.

REQUIREMENTS:
  User-specified:
  - Insert: one timed region around the whole insert, no percentiles.
  - Search: warmup (untimed), then one timed single-query call per
    remaining query, duration = sum of latencies.
  - Concurrent search: N workers over N equal contiguous chunks,
    wall-clock duration, remainder queries are not scheduled.
  - A failed scenario emits nothing.

  Implementation-discovered:
  - Every driver call gets its own deadline so a hung backend surfaces
    as model.ErrTimeout instead of blocking forever.
  - Context setup and resource sampling sit outside the timed region.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/session.go, internal/engine/runner.go
  - Uses: internal/driver, internal/measure, internal/metrics

ERROR HANDLING:
  - Invalid parameters: model.ErrInput before any driver call.
  - Driver failures: wrapped in *ScenarioError (backend + scenario).
  - No retries.

IMPLEMENTATION RULES:
  - Only SearchVectors is called from more than one goroutine.
  - Workers own their latency slices and hand them over on a channel.

USAGE:
  o := engine.NewOrchestrator(d, sampler, engine.WithLogger(l))
  res, err := o.BenchmarkSearch(ctx, "small", queries, 10, 100)

SELF-HEALING INSTRUCTIONS:
  - If concurrent throughput looks too high, check that duration is the
    wall-clock of the whole fan-out, not a latency sum.

RELATED FILES:
  - internal/measure/measure.go
  - internal/driver/driver.go

MAINTENANCE:
  - Keep metadata keys stable; report tooling groups by them.
*/

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/measure"
	"github.com/daryltucker/vecbench/internal/metrics"
	"github.com/daryltucker/vecbench/internal/model"
	"github.com/daryltucker/vecbench/internal/output"
)

// DefaultCallTimeout bounds a single driver call.
const DefaultCallTimeout = 60 * time.Second

// Sampler provides point-in-time resource readings.
type Sampler interface {
	MemoryMB() (float64, error)
	CPUPercent() (float64, error)
}

// ScenarioError reports a failed scenario with backend identity attached.
type ScenarioError struct {
	Backend  string
	Scenario string
	Dataset  string
	Err      error
}

func (e *ScenarioError) Error() string {
	if e.Dataset == "" {
		return fmt.Sprintf("%s: %s failed: %v", e.Backend, e.Scenario, e.Err)
	}
	return fmt.Sprintf("%s: %s on %q failed: %v", e.Backend, e.Scenario, e.Dataset, e.Err)
}

func (e *ScenarioError) Unwrap() error { return e.Err }

// Orchestrator drives scenarios against one driver.
type Orchestrator struct {
	driver      driver.Driver
	sampler     Sampler
	logger      *slog.Logger
	metrics     *metrics.Collector
	callTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to output.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records driver calls and scenario outcomes in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithCallTimeout sets the per-call deadline. Zero or negative disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// NewOrchestrator creates an Orchestrator. The driver must be exclusively
// owned by it for the duration of the benchmark.
func NewOrchestrator(d driver.Driver, s Sampler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		driver:      d,
		sampler:     s,
		logger:      output.Logger,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("backend", d.Name())
	return o
}

// CollectionName is the collection used for a dataset.
func CollectionName(dataset string) string {
	return "bench_" + dataset
}

// call runs fn under the per-call deadline and returns its latency in
// milliseconds. Unclassified errors are marked with class.
func (o *Orchestrator) call(ctx context.Context, name string, class error, fn func(context.Context) error) (float64, error) {
	cctx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	ms, err := measure.Time(func() error { return fn(cctx) })
	o.metrics.ObserveCall(o.driver.Name(), name, time.Duration(ms*float64(time.Millisecond)), err)
	if err == nil {
		return ms, nil
	}

	switch {
	case ctx.Err() != nil:
		return ms, errors.Wrapf(err, "%s canceled", name)
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		return ms, errors.Mark(errors.Wrapf(err, "%s exceeded %s", name, o.callTimeout), model.ErrTimeout)
	case !driver.IsClassified(err):
		return ms, errors.Mark(errors.Wrapf(err, "%s", name), class)
	default:
		return ms, err
	}
}

func (o *Orchestrator) fail(op model.Operation, dataset string, err error) error {
	o.metrics.ObserveScenario(o.driver.Name(), op.String(), dataset, 0, err)
	return &ScenarioError{Backend: o.driver.Name(), Scenario: op.String(), Dataset: dataset, Err: err}
}

func (o *Orchestrator) emit(r model.BenchmarkResult, samples []float64) model.BenchmarkResult {
	o.metrics.ObserveScenario(r.Backend, r.Operation.String(), r.Dataset, r.Throughput, nil)

	attrs := []any{
		"operation", r.Operation,
		"dataset", r.Dataset,
		"count", r.Count,
		"duration_s", fmt.Sprintf("%.3f", r.DurationSeconds),
		"throughput", fmt.Sprintf("%.1f/s", r.Throughput),
	}
	if len(samples) > 0 {
		attrs = append(attrs,
			"p50_ms", fmt.Sprintf("%.2f", r.LatencyP50),
			"p99_ms", fmt.Sprintf("%.2f", r.LatencyP99),
		)
		if s, err := measure.Summarize(samples); err == nil {
			attrs = append(attrs, "mean_ms", fmt.Sprintf("%.2f", s.Mean), "max_ms", fmt.Sprintf("%.2f", s.Max))
		}
	}
	o.logger.Info("Scenario complete", attrs...)
	return r
}

// resources holds the before/after readings around a measured region.
type resources struct {
	before, after, cpu float64
}

func (o *Orchestrator) memoryBefore(r *resources) error {
	mb, err := o.sampler.MemoryMB()
	if err != nil {
		return errors.Wrap(err, "sample memory")
	}
	r.before = mb
	return nil
}

func (o *Orchestrator) memoryAfterAndCPU(r *resources) error {
	mb, err := o.sampler.MemoryMB()
	if err != nil {
		return errors.Wrap(err, "sample memory")
	}
	cpu, err := o.sampler.CPUPercent()
	if err != nil {
		return errors.Wrap(err, "sample cpu")
	}
	r.after, r.cpu = mb, cpu
	return nil
}

// BenchmarkInsert creates (or replaces) the dataset's collection and times
// a single InsertVectors call over all vectors.
func (o *Orchestrator) BenchmarkInsert(ctx context.Context, dataset string, vectors [][]float32, metadata []driver.Metadata, batchSize int) (model.BenchmarkResult, error) {
	const op = model.OpInsert

	dim, err := validateInsert(vectors, metadata, batchSize)
	if err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}
	collection := CollectionName(dataset)

	if _, err := o.call(ctx, "create_collection", model.ErrCollection, func(ctx context.Context) error {
		return o.driver.CreateCollection(ctx, collection, dim)
	}); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	var res resources
	if err := o.memoryBefore(&res); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	o.logger.Info("Inserting vectors", "dataset", dataset, "count", len(vectors), "batch_size", batchSize)
	ms, err := o.call(ctx, "insert_vectors", model.ErrOperation, func(ctx context.Context) error {
		return o.driver.InsertVectors(ctx, collection, vectors, metadata, batchSize)
	})
	if err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	if err := o.memoryAfterAndCPU(&res); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	duration := ms / 1000
	return o.emit(model.BenchmarkResult{
		Backend:         o.driver.Name(),
		Operation:       op,
		Dataset:         dataset,
		Count:           len(vectors),
		DurationSeconds: duration,
		Throughput:      measure.Throughput(len(vectors), duration),
		MemoryDeltaMB:   res.after - res.before,
		CPUPercent:      res.cpu,
		Metadata: map[string]any{
			"batch_size": batchSize,
			"vectors":    len(vectors),
			"dimension":  dim,
		},
	}, nil), nil
}

// BenchmarkSearch warms up with the first min(warmup, len(queries))
// queries and times every remaining query individually, in input order.
func (o *Orchestrator) BenchmarkSearch(ctx context.Context, dataset string, queries [][]float32, topK, warmup int) (model.BenchmarkResult, error) {
	const op = model.OpSearch

	if err := validateSearch(queries, topK, warmup); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}
	collection := CollectionName(dataset)
	w := min(warmup, len(queries))

	for i := 0; i < w; i++ {
		q := queries[i : i+1]
		if _, err := o.call(ctx, "warmup", model.ErrOperation, func(ctx context.Context) error {
			_, err := o.driver.SearchVectors(ctx, collection, q, topK)
			return err
		}); err != nil {
			return model.BenchmarkResult{}, o.fail(op, dataset, errors.Wrap(err, "warmup"))
		}
	}

	var res resources
	if err := o.memoryBefore(&res); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	timed := queries[w:]
	latencies := make([]float64, 0, len(timed))
	for i := range timed {
		q := timed[i : i+1]
		ms, err := o.call(ctx, "search", model.ErrOperation, func(ctx context.Context) error {
			_, err := o.driver.SearchVectors(ctx, collection, q, topK)
			return err
		})
		if err != nil {
			return model.BenchmarkResult{}, o.fail(op, dataset, err)
		}
		latencies = append(latencies, ms)
	}

	if err := o.memoryAfterAndCPU(&res); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	p, err := measure.ComputePercentiles(latencies)
	if err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}
	duration := measure.SumSeconds(latencies)

	return o.emit(model.BenchmarkResult{
		Backend:         o.driver.Name(),
		Operation:       op,
		Dataset:         dataset,
		Count:           len(latencies),
		DurationSeconds: duration,
		Throughput:      measure.Throughput(len(latencies), duration),
		LatencyP50:      p.P50,
		LatencyP90:      p.P90,
		LatencyP95:      p.P95,
		LatencyP99:      p.P99,
		MemoryDeltaMB:   res.after - res.before,
		CPUPercent:      res.cpu,
		Metadata: map[string]any{
			"top_k":   topK,
			"warmup":  w,
			"queries": len(latencies),
		},
	}, latencies), nil
}

// BenchmarkConcurrentSearch splits queries into concurrent contiguous
// chunks of len(queries)/concurrent and searches them in parallel. Queries
// beyond chunks*concurrent are not scheduled.
func (o *Orchestrator) BenchmarkConcurrentSearch(ctx context.Context, dataset string, queries [][]float32, topK, concurrent int) (model.BenchmarkResult, error) {
	const op = model.OpConcurrentSearch

	per, err := partition(len(queries), topK, concurrent)
	if err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}
	collection := CollectionName(dataset)
	scheduled := per * concurrent

	var res resources
	if err := o.memoryBefore(&res); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	samples := make(chan []float64, concurrent)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrent)

	start := time.Now()
	for w := 0; w < concurrent; w++ {
		chunk := queries[w*per : (w+1)*per]
		g.Go(func() error {
			local := make([]float64, 0, len(chunk))
			for i := range chunk {
				q := chunk[i : i+1]
				ms, err := o.call(gctx, "search", model.ErrOperation, func(ctx context.Context) error {
					_, err := o.driver.SearchVectors(ctx, collection, q, topK)
					return err
				})
				if err != nil {
					return errors.Wrapf(err, "worker %d", w)
				}
				local = append(local, ms)
			}
			samples <- local
			return nil
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	close(samples)
	if err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	latencies := make([]float64, 0, scheduled)
	for local := range samples {
		latencies = append(latencies, local...)
	}

	if err := o.memoryAfterAndCPU(&res); err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}

	p, err := measure.ComputePercentiles(latencies)
	if err != nil {
		return model.BenchmarkResult{}, o.fail(op, dataset, err)
	}
	duration := elapsed.Seconds()

	return o.emit(model.BenchmarkResult{
		Backend:         o.driver.Name(),
		Operation:       op,
		Dataset:         dataset,
		Count:           len(latencies),
		DurationSeconds: duration,
		Throughput:      measure.Throughput(len(latencies), duration),
		LatencyP50:      p.P50,
		LatencyP90:      p.P90,
		LatencyP95:      p.P95,
		LatencyP99:      p.P99,
		MemoryDeltaMB:   res.after - res.before,
		CPUPercent:      res.cpu,
		Metadata: map[string]any{
			"top_k":      topK,
			"concurrent": concurrent,
			"queries":    len(latencies),
			"dropped":    len(queries) - scheduled,
		},
	}, latencies), nil
}

// Cleanup deletes the dataset's collection. Failures are logged, never
// returned.
func (o *Orchestrator) Cleanup(ctx context.Context, dataset string) {
	collection := CollectionName(dataset)
	if _, err := o.call(ctx, "delete_collection", model.ErrCollection, func(ctx context.Context) error {
		return o.driver.DeleteCollection(ctx, collection)
	}); err != nil {
		o.logger.Warn("Collection cleanup failed", "collection", collection, "error", err)
		return
	}
	o.logger.Debug("Collection removed", "collection", collection)
}

func validateInsert(vectors [][]float32, metadata []driver.Metadata, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, model.InputErrorf("batch size must be positive, got %d", batchSize)
	}
	if len(vectors) == 0 {
		return 0, model.InputErrorf("no vectors to insert")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, model.InputErrorf("vectors have zero dimension")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, model.InputErrorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	if metadata != nil && len(metadata) != len(vectors) {
		return 0, model.InputErrorf("metadata has %d records for %d vectors", len(metadata), len(vectors))
	}
	return dim, nil
}

func validateSearch(queries [][]float32, topK, warmup int) error {
	if topK <= 0 {
		return model.InputErrorf("top_k must be positive, got %d", topK)
	}
	if warmup <= 0 {
		return model.InputErrorf("warmup must be positive, got %d", warmup)
	}
	if len(queries) <= warmup {
		return model.InputErrorf("%d queries leave none to measure after %d warmup queries", len(queries), warmup)
	}
	return nil
}

// partition returns the per-worker chunk size.
func partition(numQueries, topK, concurrent int) (int, error) {
	if topK <= 0 {
		return 0, model.InputErrorf("top_k must be positive, got %d", topK)
	}
	if concurrent <= 0 {
		return 0, model.InputErrorf("concurrency must be positive, got %d", concurrent)
	}
	per := numQueries / concurrent
	if per == 0 {
		return 0, model.InputErrorf("%d queries cannot feed %d workers", numQueries, concurrent)
	}
	return per, nil
}
