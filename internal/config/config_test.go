package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/vecbench/internal/model"
)

const sampleYAML = `
output_dir: /tmp/out
call_timeout: 5s
backends:
  - name: q1
    type: qdrant
    host: localhost
    port: 6334
    api_key: ${VECBENCH_TEST_KEY}
  - type: vecgo
    path: /tmp/vecgo
datasets:
  - name: tiny
    num_vectors: 100
    dimension: 4
    query_count: 20
benchmarks:
  insert:
    batch_sizes: [10]
  search:
    top_k_values: [5]
    warmup: 2
    concurrent_queries: [2, 4]
    concurrent_top_k: 5
`

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadFile(t *testing.T) {
	t.Setenv("VECBENCH_TEST_KEY", "s3cret")
	path := filepath.Join(t.TempDir(), "vecbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "s3cret", cfg.Backends[0].APIKey)
	assert.Equal(t, "q1", cfg.Backends[0].Label())
	assert.Equal(t, "vecgo", cfg.Backends[1].Label())
	assert.Equal(t, []int{2, 4}, cfg.Benchmarks.Search.ConcurrentQueries)
	// Unset fields keep their defaults.
	assert.Equal(t, 100*time.Millisecond, cfg.CPUInterval)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backends: [:"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsNonPositive(t *testing.T) {
	cases := map[string]func(c *Config){
		"batch size":  func(c *Config) { c.Benchmarks.Insert.BatchSizes = []int{100, 0} },
		"top_k":       func(c *Config) { c.Benchmarks.Search.TopKValues = []int{-1} },
		"warmup":      func(c *Config) { c.Benchmarks.Search.Warmup = 0 },
		"concurrency": func(c *Config) { c.Benchmarks.Search.ConcurrentQueries = []int{0} },
		"timeout":     func(c *Config) { c.CallTimeout = 0 },
		"no backends": func(c *Config) { c.Backends = nil },
		"dataset":     func(c *Config) { c.Datasets[0].Dimension = 0 },
		"duplicate":   func(c *Config) { c.Backends = append(c.Backends, c.Backends[0]) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInput))
		})
	}
}

func TestSelectBackends(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backends = []Backend{{Type: "qdrant"}, {Type: "weaviate"}, {Name: "local", Type: "vecgo"}}

	require.NoError(t, cfg.SelectBackends([]string{"local", "qdrant"}))
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "local", cfg.Backends[0].Label())

	err := cfg.SelectBackends([]string{"pinecone"})
	assert.True(t, errors.Is(err, model.ErrInput))
}

func TestSelectDatasets(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SelectDatasets(nil))
	assert.Len(t, cfg.Datasets, 1)

	err := cfg.SelectDatasets([]string{"large"})
	assert.True(t, errors.Is(err, model.ErrInput))
}
