/*
PURPOSE:
  In-memory, append-only accumulation of BenchmarkResult records and
  their export as a flat JSON array.

REQUIREMENTS:
  User-specified:
  - append, all (insertion order), export to an external sink.
  - Re-export of an unchanged store produces identical bytes.

  Implementation-discovered:
  - Results are cloned on the way in and out so callers cannot mutate
    stored metadata maps.
  - encoding/json sorts map keys, which makes metadata output stable.

ARCHITECTURE INTEGRATION:
  - Owned by: internal/engine.Run (the caller of the orchestrator)
  - Consumed by: report generators reading the exported file

ERROR HANDLING:
  - Export returns the encoder/writer error.

IMPLEMENTATION RULES:
  - No deletion, no mutation of existing entries.
  - Thread-safe.

USAGE:
  s := results.NewStore()
  s.Append(res)
  err := s.Export(f)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/model/types.go
  - internal/output/csv.go

MAINTENANCE:
  - Field names come from model.BenchmarkResult JSON tags.
*/

package results

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/daryltucker/vecbench/internal/model"
)

// Store is an append-only, ordered collection of results.
type Store struct {
	mu    sync.RWMutex
	items []model.BenchmarkResult
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Append adds r to the end of the store.
func (s *Store) Append(r model.BenchmarkResult) {
	r = r.Clone()
	s.mu.Lock()
	s.items = append(s.items, r)
	s.mu.Unlock()
}

// All returns a copy of every stored result in insertion order.
func (s *Store) All() []model.BenchmarkResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BenchmarkResult, len(s.items))
	for i, r := range s.items {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Export writes every result to w as an indented JSON array.
func (s *Store) Export(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.items
	if items == nil {
		items = []model.BenchmarkResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return errors.Wrap(err, "export results")
	}
	return nil
}

// ExportFile writes the export to path, replacing any existing file.
func (s *Store) ExportFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return s.Export(f)
}
