package measure

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vecbench/internal/model"
)

func TestComputePercentilesEmpty(t *testing.T) {
	_, err := ComputePercentiles(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSamples))
	assert.True(t, errors.Is(err, model.ErrInput))
}

func TestComputePercentilesIdenticalValues(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100} {
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = 3.25
		}
		p, err := ComputePercentiles(samples)
		require.NoError(t, err)
		assert.Equal(t, Percentiles{P50: 3.25, P90: 3.25, P95: 3.25, P99: 3.25}, p, "n=%d", n)
	}
}

func TestComputePercentilesLinearInterpolation(t *testing.T) {
	// 1..10 in scrambled order; numpy.percentile gives 5.5, 9.1, 9.55, 9.91.
	samples := []float64{7, 3, 10, 1, 5, 9, 2, 8, 6, 4}

	p, err := ComputePercentiles(samples)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, p.P50, 1e-9)
	assert.InDelta(t, 9.1, p.P90, 1e-9)
	assert.InDelta(t, 9.55, p.P95, 1e-9)
	assert.InDelta(t, 9.91, p.P99, 1e-9)

	// Input order is preserved for the caller.
	assert.Equal(t, []float64{7, 3, 10, 1, 5, 9, 2, 8, 6, 4}, samples)
}

func TestPercentileExactRankTakesLowerSample(t *testing.T) {
	// n=5: rank for p50 is exactly 2.
	v, err := Percentile([]float64{10, 20, 30, 40, 50}, 50)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	v, err = Percentile([]float64{10, 20, 30, 40, 50}, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	v, err = Percentile([]float64{10, 20, 30, 40, 50}, 100)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
}

func TestPercentileRejectsOutOfRange(t *testing.T) {
	_, err := Percentile([]float64{1}, 101)
	assert.True(t, errors.Is(err, model.ErrInput))
	_, err = Percentile([]float64{1}, -1)
	assert.True(t, errors.Is(err, model.ErrInput))
}

func TestComputePercentilesMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(500)
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = rng.ExpFloat64() * 12
		}
		p, err := ComputePercentiles(samples)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.P50, p.P90)
		assert.LessOrEqual(t, p.P90, p.P95)
		assert.LessOrEqual(t, p.P95, p.P99)
	}
}

func TestThroughput(t *testing.T) {
	assert.InDelta(t, 250.0, Throughput(1000, 4), 1e-9)
	assert.InDelta(t, 1000.0/3.0, Throughput(1000, 3), 1e-9)
	assert.Zero(t, Throughput(0, 10))
	assert.Zero(t, Throughput(10, 0))
	assert.Zero(t, Throughput(10, -1))
}

func TestSumSeconds(t *testing.T) {
	assert.InDelta(t, 1.5, SumSeconds([]float64{500, 250, 750}), 1e-12)
	assert.Zero(t, SumSeconds(nil))
}

func TestTimeMeasuresTheCall(t *testing.T) {
	boom := errors.New("boom")
	ms, err := Time(func() error {
		time.Sleep(15 * time.Millisecond)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, ms, 15.0)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1.5, Millis(1500*time.Microsecond))
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)

	_, err = Summarize(nil)
	assert.True(t, errors.Is(err, ErrNoSamples))
}
