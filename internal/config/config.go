/*
PURPOSE:
  Defines the configuration structure and loading logic for vecbench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure backends (host, port, credentials, metric), datasets and
    benchmark parameters (batch sizes, top_k, warmup, concurrency).

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Credentials come from the environment: ${VAR} is expanded in every
    backend string field.
  - Non-positive benchmark parameters are input errors, caught before
    any backend is touched.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/backend
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default file falls back to defaults.
  - Validate() errors are marked model.ErrInput.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (e.g., 60s call timeout).

USAGE:
  cfg, err := config.Load("vecbench.yaml")
  err = cfg.Validate()

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update
    DefaultConfig() and Validate().

RELATED FILES:
  - internal/cli/run.go
  - internal/backend/factory.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/daryltucker/vecbench/internal/model"
)

// Backend describes one backend under test. Type selects the adapter;
// Name labels results (defaults to Type).
type Backend struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	Scheme     string            `yaml:"scheme"`
	APIKey     string            `yaml:"api_key"`
	Metric     string            `yaml:"metric"`
	Path       string            `yaml:"path"`
	Collection string            `yaml:"collection"`
	TLS        bool              `yaml:"tls"`
	Options    map[string]string `yaml:"options"`
}

// Label returns the name results are reported under.
func (b Backend) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Type
}

// Dataset describes a synthetic dataset.
type Dataset struct {
	Name       string `yaml:"name"`
	NumVectors int    `yaml:"num_vectors"`
	Dimension  int    `yaml:"dimension"`
	QueryCount int    `yaml:"query_count"`
	Clusters   int    `yaml:"clusters"`
	Seed       int64  `yaml:"seed"`
}

// InsertBenchmark configures the insert scenario.
type InsertBenchmark struct {
	BatchSizes []int `yaml:"batch_sizes"`
}

// SearchBenchmark configures both search scenarios.
type SearchBenchmark struct {
	TopKValues        []int `yaml:"top_k_values"`
	Warmup            int   `yaml:"warmup"`
	ConcurrentQueries []int `yaml:"concurrent_queries"`
	ConcurrentTopK    int   `yaml:"concurrent_top_k"`
}

// Benchmarks groups scenario parameters.
type Benchmarks struct {
	Insert InsertBenchmark `yaml:"insert"`
	Search SearchBenchmark `yaml:"search"`
}

// Config represents the full configuration for vecbench.
type Config struct {
	OutputDir   string        `yaml:"output_dir"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	CPUInterval time.Duration `yaml:"cpu_interval"`
	Metrics     bool          `yaml:"metrics"`
	Backends    []Backend     `yaml:"backends"`
	Datasets    []Dataset     `yaml:"datasets"`
	Benchmarks  Benchmarks    `yaml:"benchmarks"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:   "./results",
		CallTimeout: 60 * time.Second,
		CPUInterval: 100 * time.Millisecond,
		Metrics:     true,
		Backends: []Backend{
			{Name: "vecgo", Type: "vecgo", Path: "./data/vecgo", Metric: "l2"},
		},
		Datasets: []Dataset{
			{Name: "small", NumVectors: 10000, Dimension: 128, QueryCount: 1000, Clusters: 10, Seed: 42},
		},
		Benchmarks: Benchmarks{
			Insert: InsertBenchmark{BatchSizes: []int{100, 500}},
			Search: SearchBenchmark{
				TopKValues:        []int{10, 100},
				Warmup:            100,
				ConcurrentQueries: []int{1, 10},
				ConcurrentTopK:    10,
			},
		},
	}
}

// DefaultFiles are searched in order when no path is given.
var DefaultFiles = []string{"vecbench.yaml", "bench.yaml", "config.yaml"}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read config file %s", path)
		}
	} else {
		found := false
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := Parse(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg (on top of whatever it already holds) and
// expands environment variables in backend fields.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.ExpandEnv()
	return nil
}

// ExpandEnv replaces ${VAR} and $VAR in backend string fields.
func (c *Config) ExpandEnv() {
	for i := range c.Backends {
		b := &c.Backends[i]
		b.Host = os.ExpandEnv(b.Host)
		b.APIKey = os.ExpandEnv(b.APIKey)
		b.Path = os.ExpandEnv(b.Path)
		b.Scheme = os.ExpandEnv(b.Scheme)
		for k, v := range b.Options {
			b.Options[k] = os.ExpandEnv(v)
		}
	}
	c.OutputDir = os.ExpandEnv(c.OutputDir)
}

// Validate checks that every benchmark parameter is usable.
func (c *Config) Validate() error {
	var errs error
	add := func(err error) { errs = errors.CombineErrors(errs, err) }

	if c.CallTimeout <= 0 {
		add(model.InputErrorf("call_timeout must be positive, got %s", c.CallTimeout))
	}
	if len(c.Backends) == 0 {
		add(model.InputErrorf("no backends configured"))
	}
	seen := map[string]bool{}
	for i, b := range c.Backends {
		if b.Type == "" {
			add(model.InputErrorf("backend %d: type is required", i))
		}
		if seen[b.Label()] {
			add(model.InputErrorf("backend %q configured twice", b.Label()))
		}
		seen[b.Label()] = true
	}

	if len(c.Datasets) == 0 {
		add(model.InputErrorf("no datasets configured"))
	}
	for _, d := range c.Datasets {
		if d.Name == "" {
			add(model.InputErrorf("dataset name is required"))
		}
		if d.NumVectors <= 0 || d.Dimension <= 0 || d.QueryCount <= 0 {
			add(model.InputErrorf("dataset %q: num_vectors, dimension and query_count must be positive", d.Name))
		}
	}

	add(positive("benchmarks.insert.batch_sizes", c.Benchmarks.Insert.BatchSizes))
	add(positive("benchmarks.search.top_k_values", c.Benchmarks.Search.TopKValues))
	add(positive("benchmarks.search.concurrent_queries", c.Benchmarks.Search.ConcurrentQueries))
	if c.Benchmarks.Search.Warmup <= 0 {
		add(model.InputErrorf("benchmarks.search.warmup must be positive, got %d", c.Benchmarks.Search.Warmup))
	}
	if c.Benchmarks.Search.ConcurrentTopK <= 0 {
		add(model.InputErrorf("benchmarks.search.concurrent_top_k must be positive, got %d", c.Benchmarks.Search.ConcurrentTopK))
	}
	return errs
}

func positive(field string, values []int) error {
	if len(values) == 0 {
		return model.InputErrorf("%s must not be empty", field)
	}
	for _, v := range values {
		if v <= 0 {
			return model.InputErrorf("%s must be positive, got %d", field, v)
		}
	}
	return nil
}

// SelectBackends keeps only the named backends, in the given order.
func (c *Config) SelectBackends(names []string) error {
	if len(names) == 0 {
		return nil
	}
	byName := make(map[string]Backend, len(c.Backends))
	for _, b := range c.Backends {
		byName[b.Label()] = b
	}
	picked := make([]Backend, 0, len(names))
	for _, n := range names {
		b, ok := byName[n]
		if !ok {
			return model.InputErrorf("unknown backend %q", n)
		}
		picked = append(picked, b)
	}
	c.Backends = picked
	return nil
}

// SelectDatasets keeps only the named datasets, in the given order.
func (c *Config) SelectDatasets(names []string) error {
	if len(names) == 0 {
		return nil
	}
	byName := make(map[string]Dataset, len(c.Datasets))
	for _, d := range c.Datasets {
		byName[d.Name] = d
	}
	picked := make([]Dataset, 0, len(names))
	for _, n := range names {
		d, ok := byName[n]
		if !ok {
			return model.InputErrorf("unknown dataset %q", n)
		}
		picked = append(picked, d)
	}
	c.Datasets = picked
	return nil
}
