/*
PURPOSE:
  Measurement primitives: time one call, turn latency samples into
  percentiles, derive throughput.

REQUIREMENTS:
  User-specified:
  - p50/p90/p95/p99 with linear interpolation between ordered samples.
  - throughput = count / seconds, 0 when either side is 0.

  Implementation-discovered:
  - Uses the monotonic clock (time.Since) so wall-clock jumps never
    produce negative latencies.
  - Percentile input must not be reordered for the caller.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine
  - Dependencies: github.com/montanaflynn/stats (summaries only)

ERROR HANDLING:
  - ComputePercentiles fails with ErrNoSamples (an input error) on an
    empty slice. Time returns the wrapped call's error untouched.

IMPLEMENTATION RULES:
  - Latencies are milliseconds (float64).
  - Timing wraps exactly the call, nothing else.

USAGE:
  ms, err := measure.Time(func() error { return d.SearchVectors(...) })
  p, err := measure.ComputePercentiles(latencies)

SELF-HEALING INSTRUCTIONS:
  - If results disagree with numpy.percentile(..., method="linear"),
    check the rank formula in percentile().

RELATED FILES:
  - internal/engine/orchestrator.go

MAINTENANCE:
  - None.
*/

package measure

import (
	"math"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/montanaflynn/stats"

	"github.com/daryltucker/vecbench/internal/model"
)

// ErrNoSamples is returned when percentiles are requested for no data.
var ErrNoSamples = errors.Mark(errors.New("no latency samples"), model.ErrInput)

// Percentiles holds the four reported latency percentiles in milliseconds.
type Percentiles struct {
	P50 float64
	P90 float64
	P95 float64
	P99 float64
}

// Summary is a descriptive view of a latency sample set, for logging.
type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Time runs fn once and returns its wall-clock duration in milliseconds.
func Time(fn func() error) (float64, error) {
	start := time.Now()
	err := fn()
	return Millis(time.Since(start)), err
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ComputePercentiles returns p50/p90/p95/p99 of samples. samples is not
// modified.
func ComputePercentiles(samples []float64) (Percentiles, error) {
	if len(samples) == 0 {
		return Percentiles{}, ErrNoSamples
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	return Percentiles{
		P50: percentile(sorted, 50),
		P90: percentile(sorted, 90),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}, nil
}

// Percentile returns the p-th percentile (0..100) of samples.
func Percentile(samples []float64, p float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, model.InputErrorf("percentile %v out of range [0,100]", p)
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return percentile(sorted, p), nil
}

// percentile interpolates linearly between the two closest ranks of an
// ascending, non-empty slice. An integral rank takes that sample exactly.
func percentile(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	v := sorted[lo] + (sorted[hi]-sorted[lo])*frac
	// Rounding must not leave the [lo, hi] bracket, or monotonicity
	// across percentiles breaks.
	return math.Min(math.Max(v, sorted[lo]), sorted[hi])
}

// Throughput returns count/seconds, or 0 if either is non-positive.
func Throughput(count int, seconds float64) float64 {
	if count <= 0 || seconds <= 0 {
		return 0
	}
	return float64(count) / seconds
}

// SumSeconds adds millisecond latencies and returns the total in seconds.
func SumSeconds(latenciesMs []float64) float64 {
	var total float64
	for _, l := range latenciesMs {
		total += l
	}
	return total / 1000
}

// Summarize returns min/max/mean/stddev of samples.
func Summarize(samples []float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoSamples
	}
	var (
		s   Summary
		err error
	)
	data := stats.Float64Data(samples)
	if s.Min, err = stats.Min(data); err != nil {
		return Summary{}, errors.Wrap(err, "min")
	}
	if s.Max, err = stats.Max(data); err != nil {
		return Summary{}, errors.Wrap(err, "max")
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, errors.Wrap(err, "mean")
	}
	if s.StdDev, err = stats.StandardDeviation(data); err != nil {
		return Summary{}, errors.Wrap(err, "stddev")
	}
	return s, nil
}
