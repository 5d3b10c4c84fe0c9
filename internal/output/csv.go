/*
PURPOSE:
  Writes benchmark results to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV for spreadsheet users.

  Implementation-discovered:
  - Metadata is a map; it is written as one JSON cell so the column set
    stays fixed.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.BenchmarkResult

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Mutex guarded.

USAGE:
  w, err := output.NewCSVWriter("results.csv")
  w.Write(result)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If CSV format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when BenchmarkResult changes.
*/

package output

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/daryltucker/vecbench/internal/model"
)

// CSVHeader is the column order of every CSV file.
var CSVHeader = []string{
	"backend", "operation", "dataset", "count",
	"duration_seconds", "throughput",
	"latency_p50", "latency_p90", "latency_p95", "latency_p99",
	"memory_delta_mb", "cpu_percent", "metadata",
}

// CSVWriter handles writing results to a CSV file.
type CSVWriter struct {
	closer io.Closer
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cw, err := newCSV(f, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return cw, nil
}

// NewCSVStream creates a CSVWriter on an existing writer.
func NewCSVStream(w io.Writer) (*CSVWriter, error) {
	return newCSV(w, nil)
}

func newCSV(w io.Writer, c io.Closer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &CSVWriter{closer: c, writer: cw}, nil
}

// Write writes a single result to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(r model.BenchmarkResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	meta := "{}"
	if len(r.Metadata) > 0 {
		b, err := json.Marshal(r.Metadata)
		if err != nil {
			return err
		}
		meta = string(b)
	}

	record := []string{
		r.Backend,
		r.Operation.String(),
		r.Dataset,
		strconv.Itoa(r.Count),
		formatFloat(r.DurationSeconds, 6),
		formatFloat(r.Throughput, 2),
		formatFloat(r.LatencyP50, 4),
		formatFloat(r.LatencyP90, 4),
		formatFloat(r.LatencyP95, 4),
		formatFloat(r.LatencyP99, 4),
		formatFloat(r.MemoryDeltaMB, 2),
		formatFloat(r.CPUPercent, 1),
		meta,
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes and closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if cw.closer == nil {
		return cw.writer.Error()
	}
	return cw.closer.Close()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
