/*
PURPOSE:
  Renders exported benchmark results as comparison tables, one per
  operation, so backends can be compared side by side in a terminal.

REQUIREMENTS:
  User-specified:
  - Read the JSON array written at the end of a run.

  Implementation-discovered:
  - Rows sort by dataset, then scenario parameter, then backend so the
    same scenario for different backends sits on adjacent lines.
  - Unknown operations are rendered in their own table rather than
    dropped.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli/report.go
  - Dependencies: github.com/olekukonko/tablewriter

ERROR HANDLING:
  - Malformed files return a wrapped decode error.

IMPLEMENTATION RULES:
  - Read-only: never rewrites the results file.

USAGE:
  rs, _ := report.Load("results/benchmark_results_20260101_120000.json")
  report.Render(os.Stdout, rs)

SELF-HEALING INSTRUCTIONS:
  - If a column is empty, check the metadata key the orchestrator emits.

RELATED FILES:
  - internal/results/store.go
  - internal/engine/orchestrator.go

MAINTENANCE:
  - Add a column when a new scenario parameter is emitted.
*/

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"

	"github.com/daryltucker/vecbench/internal/model"
)

// Load reads a JSON array of results.
func Load(path string) ([]model.BenchmarkResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a JSON array of results from r.
func Decode(r io.Reader) ([]model.BenchmarkResult, error) {
	var out []model.BenchmarkResult
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode results")
	}
	return out, nil
}

// paramKey is the metadata key that distinguishes scenarios of an operation.
var paramKey = map[model.Operation]string{
	model.OpInsert:           "batch_size",
	model.OpSearch:           "top_k",
	model.OpConcurrentSearch: "concurrent",
}

var order = []model.Operation{model.OpInsert, model.OpSearch, model.OpConcurrentSearch}

// Render writes one table per operation present in results.
func Render(w io.Writer, results []model.BenchmarkResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}

	byOp := map[model.Operation][]model.BenchmarkResult{}
	var extra []model.Operation
	for _, r := range results {
		if _, known := paramKey[r.Operation]; !known && byOp[r.Operation] == nil {
			extra = append(extra, r.Operation)
		}
		byOp[r.Operation] = append(byOp[r.Operation], r)
	}

	for _, op := range append(order, extra...) {
		rows := byOp[op]
		if len(rows) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n== %s ==\n", op); err != nil {
			return err
		}
		renderTable(w, op, rows)
	}
	return nil
}

func renderTable(w io.Writer, op model.Operation, rows []model.BenchmarkResult) {
	key := paramKey[op]
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		if pa, pb := param(a, key), param(b, key); pa != pb {
			return pa < pb
		}
		return a.Backend < b.Backend
	})

	header := []string{"dataset", "backend"}
	if key != "" {
		header = append(header, key)
	}
	header = append(header, "count", "duration_s", "throughput/s")
	if op != model.OpInsert {
		header = append(header, "p50_ms", "p95_ms", "p99_ms")
	}
	header = append(header, "mem_delta_mb", "cpu_%")

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)

	for _, r := range rows {
		row := []string{r.Dataset, r.Backend}
		if key != "" {
			row = append(row, strconv.FormatFloat(param(r, key), 'f', -1, 64))
		}
		row = append(row,
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.DurationSeconds, 'f', 3, 64),
			strconv.FormatFloat(r.Throughput, 'f', 1, 64),
		)
		if op != model.OpInsert {
			row = append(row,
				strconv.FormatFloat(r.LatencyP50, 'f', 2, 64),
				strconv.FormatFloat(r.LatencyP95, 'f', 2, 64),
				strconv.FormatFloat(r.LatencyP99, 'f', 2, 64),
			)
		}
		row = append(row,
			strconv.FormatFloat(r.MemoryDeltaMB, 'f', 2, 64),
			strconv.FormatFloat(r.CPUPercent, 'f', 1, 64),
		)
		table.Append(row)
	}
	table.Render()
}

// param reads a numeric scenario parameter; decoded JSON numbers are
// float64, in-process results hold ints.
func param(r model.BenchmarkResult, key string) float64 {
	switch v := r.Metadata[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
