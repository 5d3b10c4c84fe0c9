package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vecbench/internal/model"
)

func sample(backend string, op model.Operation) model.BenchmarkResult {
	return model.BenchmarkResult{
		Backend:         backend,
		Operation:       op,
		Dataset:         "small",
		Count:           40,
		DurationSeconds: 0.5,
		Throughput:      80,
		LatencyP50:      1.2,
		LatencyP90:      2.4,
		LatencyP95:      3.1,
		LatencyP99:      4.9,
		MemoryDeltaMB:   -0.25,
		CPUPercent:      12.5,
		Metadata:        map[string]any{"top_k": 10, "warmup": 10, "queries": 40},
	}
}

func TestAppendAndAllPreserveOrder(t *testing.T) {
	s := NewStore()
	s.Append(sample("a", model.OpInsert))
	s.Append(sample("b", model.OpSearch))
	s.Append(sample("c", model.OpConcurrentSearch))

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Backend, all[1].Backend, all[2].Backend})
}

func TestStoredResultsAreIsolated(t *testing.T) {
	s := NewStore()
	r := sample("a", model.OpSearch)
	s.Append(r)

	r.Metadata["top_k"] = 999
	got := s.All()[0]
	assert.Equal(t, 10, got.Metadata["top_k"])

	got.Metadata["top_k"] = 1
	assert.Equal(t, 10, s.All()[0].Metadata["top_k"])
}

func TestExportIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Append(sample("qdrant", model.OpInsert))
	s.Append(sample("vecgo", model.OpConcurrentSearch))

	var first, second bytes.Buffer
	require.NoError(t, s.Export(&first))
	require.NoError(t, s.Export(&second))

	assert.Equal(t, first.Bytes(), second.Bytes())
	assert.Equal(t, 2, s.Len())
}

func TestExportFieldNames(t *testing.T) {
	s := NewStore()
	s.Append(sample("qdrant", model.OpSearch))

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)

	want := []string{
		"backend", "operation", "dataset", "count", "duration_seconds", "throughput",
		"latency_p50", "latency_p90", "latency_p95", "latency_p99",
		"memory_delta_mb", "cpu_percent", "metadata",
	}
	assert.Len(t, decoded[0], len(want))
	for _, k := range want {
		assert.Contains(t, decoded[0], k)
	}
	assert.Equal(t, "search", decoded[0]["operation"])
}

func TestExportEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStore().Export(&buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestExportFile(t *testing.T) {
	s := NewStore()
	s.Append(sample("weaviate", model.OpInsert))

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, s.ExportFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))
	assert.Equal(t, buf.Bytes(), data)
}

func TestConcurrentAppend(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(sample("x", model.OpSearch))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
