/*
PURPOSE:
  Defines the core data structures used throughout vecbench.
  A BenchmarkResult is the single record produced by one scenario run.

REQUIREMENTS:
  User-specified:
  - Record throughput, latency percentiles, memory delta and CPU usage.
  - Track backend name, dataset and scenario parameters.

  Implementation-discovered:
  - JSON field names are the export contract for report tooling.
  - Metadata holds scalars only (ints, floats, strings, bools).

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/results, internal/output
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs). Error sentinels live in errors.go.

IMPLEMENTATION RULES:
  - Records are values. Never mutate one after it has been emitted.
  - Latencies are milliseconds, durations are seconds (float64).

USAGE:
  res := model.BenchmarkResult{Backend: "qdrant", Operation: model.OpSearch, ...}

SELF-HEALING INSTRUCTIONS:
  - If a new metric is needed, add the field and update the CSV writer.

RELATED FILES:
  - internal/output/csv.go
  - internal/results/store.go

MAINTENANCE:
  - Renaming a JSON tag breaks downstream report generators.
*/

package model

// Operation identifies the scenario that produced a result.
type Operation string

const (
	OpInsert           Operation = "insert"
	OpSearch           Operation = "search"
	OpConcurrentSearch Operation = "concurrent_search"
)

func (o Operation) String() string { return string(o) }

// BenchmarkResult represents the outcome of a single benchmark scenario.
type BenchmarkResult struct {
	Backend         string         `json:"backend"`
	Operation       Operation      `json:"operation"`
	Dataset         string         `json:"dataset"`
	Count           int            `json:"count"`
	DurationSeconds float64        `json:"duration_seconds"`
	Throughput      float64        `json:"throughput"`
	LatencyP50      float64        `json:"latency_p50"`
	LatencyP90      float64        `json:"latency_p90"`
	LatencyP95      float64        `json:"latency_p95"`
	LatencyP99      float64        `json:"latency_p99"`
	MemoryDeltaMB   float64        `json:"memory_delta_mb"`
	CPUPercent      float64        `json:"cpu_percent"`
	Metadata        map[string]any `json:"metadata"`
}

// Clone returns a copy whose Metadata map is not shared with r.
func (r BenchmarkResult) Clone() BenchmarkResult {
	out := r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
