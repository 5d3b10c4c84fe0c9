/*
PURPOSE:
  Streams benchmark results to a JSON Lines file (NDJSON) as they are
  produced, so a crashed run still leaves every finished scenario on disk.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

  Implementation-discovered:
  - JSON Lines is append-friendly. The final JSON array export is done by
    internal/results.Store.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.BenchmarkResult

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("results.jsonl")
  w.Write(result)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - None.
*/

package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/daryltucker/vecbench/internal/model"
)

// JSONWriter handles writing results to a JSON Lines stream.
type JSONWriter struct {
	closer  io.Closer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a JSONWriter on a new file at path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{
		closer:  f,
		encoder: json.NewEncoder(f),
	}, nil
}

// NewJSONStream creates a JSONWriter on an existing writer. Close is a
// no-op for the underlying writer.
func NewJSONStream(w io.Writer) *JSONWriter {
	return &JSONWriter{encoder: json.NewEncoder(w)}
}

// Write writes a single result as a JSON line.
func (jw *JSONWriter) Write(r model.BenchmarkResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(r)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	if jw.closer == nil {
		return nil
	}
	return jw.closer.Close()
}
