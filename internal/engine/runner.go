/*
PURPOSE:
  High-level runner that orchestrates the benchmarking process.
  Loops through Backends -> Datasets -> Scenarios and records results.

REQUIREMENTS:
  User-specified:
  - Run the suite against every configured backend.
  - Log results to CSV/JSON and export the full run as a JSON array.

  Implementation-discovered:
  - Datasets are generated once and shared by all backends so every
    backend sees identical vectors.
  - Backends run strictly one after another; a slow backend must not
    steal CPU from the one being measured.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/engine, internal/backend, internal/dataset,
    internal/output, internal/results, internal/metrics

ERROR HANDLING:
  - Logs errors but continues (resilience).
  - A backend that cannot be built or connected is skipped.
  - Run returns the combined error of every failed backend after all
    outputs are written.

IMPLEMENTATION RULES:
  - Iterate Backends.
  - For each Backend: one Orchestrator session over all datasets.
  - Every result goes to the store, the CSV, and the JSON-lines stream.

USAGE:
  engine.Run(ctx, cfg)

SELF-HEALING INSTRUCTIONS:
  - If a backend is missing from the report, look for "Connect failed"
    in the log.

RELATED FILES:
  - internal/engine/orchestrator.go
  - internal/engine/session.go

MAINTENANCE:
  - Update iteration logic if parallelism is introduced.
*/

package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/daryltucker/vecbench/internal/backend"
	"github.com/daryltucker/vecbench/internal/config"
	"github.com/daryltucker/vecbench/internal/dataset"
	"github.com/daryltucker/vecbench/internal/driver"
	"github.com/daryltucker/vecbench/internal/metrics"
	"github.com/daryltucker/vecbench/internal/model"
	"github.com/daryltucker/vecbench/internal/output"
	"github.com/daryltucker/vecbench/internal/resource"
	"github.com/daryltucker/vecbench/internal/results"
)

// Output file names inside Config.OutputDir.
const (
	CSVFile     = "results.csv"
	JSONLFile   = "results.jsonl"
	MetricsFile = "metrics.prom"
)

// ExportFileName returns the name of the JSON array export for a run
// started at t.
func ExportFileName(t time.Time) string {
	return "benchmark_results_" + t.Format("20060102_150405") + ".json"
}

// Sink receives results as they are produced.
type Sink interface {
	Write(model.BenchmarkResult) error
}

// Suite runs the configured plan against every backend.
type Suite struct {
	Backends []config.Backend
	Datasets []config.Dataset
	Plan     Plan

	// NewDriver builds the driver for a backend. Defaults to backend.New.
	NewDriver func(config.Backend) (driver.Driver, error)
	// Generate builds a dataset. Defaults to dataset.Generate.
	Generate func(config.Dataset) (dataset.Dataset, error)

	Sampler     Sampler
	Store       *results.Store
	Sinks       []Sink
	Metrics     *metrics.Collector
	Logger      *slog.Logger
	CallTimeout time.Duration
}

// Run executes the suite. Results already recorded stay in the store
// even when Run returns an error.
func (s *Suite) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = output.Logger
	}
	newDriver := s.NewDriver
	if newDriver == nil {
		newDriver = backend.New
	}
	generate := s.Generate
	if generate == nil {
		generate = dataset.Generate
	}
	if s.Store == nil {
		s.Store = results.NewStore()
	}

	// 1. Dataset phase
	datasets := make([]dataset.Dataset, 0, len(s.Datasets))
	for _, spec := range s.Datasets {
		logger.Info("Generating dataset...", "dataset", spec.Name, "vectors", spec.NumVectors, "dimension", spec.Dimension)
		ds, err := generate(spec)
		if err != nil {
			return errors.Wrapf(err, "generate dataset %q", spec.Name)
		}
		logger.Info("Dataset ready", "dataset", ds.Name, "size", humanize.IBytes(ds.SizeBytes()))
		datasets = append(datasets, ds)
	}

	emit := func(r model.BenchmarkResult) {
		s.Store.Append(r)
		for _, sink := range s.Sinks {
			if err := sink.Write(r); err != nil {
				logger.Error("Failed to write result", "backend", r.Backend, "operation", r.Operation, "error", err)
			}
		}
	}

	// 2. Execution phase
	var errs error
	for _, b := range s.Backends {
		if err := ctx.Err(); err != nil {
			return errors.CombineErrors(errs, err)
		}
		logger.Info("Testing Backend", "backend", b.Label(), "type", b.Type)

		d, err := newDriver(b)
		if err != nil {
			logger.Error("Failed to build driver", "backend", b.Label(), "error", err)
			errs = errors.CombineErrors(errs, err)
			continue
		}

		o := NewOrchestrator(d, s.Sampler,
			WithLogger(logger),
			WithMetrics(s.Metrics),
			WithCallTimeout(s.CallTimeout),
		)
		if err := o.RunSession(ctx, datasets, s.Plan, emit); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// Run executes the full benchmark suite described by cfg and writes every
// output file into cfg.OutputDir.
func Run(ctx context.Context, cfg *config.Config) error {
	started := time.Now()

	// Ensure output directory exists
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", cfg.OutputDir)
	}

	// Setup Outputs
	csvPath := filepath.Join(cfg.OutputDir, CSVFile)
	csvWriter, err := output.NewCSVWriter(csvPath)
	if err != nil {
		return errors.Wrapf(err, "failed to init CSV writer at %s", csvPath)
	}
	defer csvWriter.Close()

	jsonPath := filepath.Join(cfg.OutputDir, JSONLFile)
	jsonWriter, err := output.NewJSONWriter(jsonPath)
	if err != nil {
		return errors.Wrapf(err, "failed to init JSON writer at %s", jsonPath)
	}
	defer jsonWriter.Close()

	sampler, err := resource.New(resource.WithCPUInterval(cfg.CPUInterval))
	if err != nil {
		return errors.Wrap(err, "failed to init resource sampler")
	}

	var collector *metrics.Collector
	if cfg.Metrics {
		collector = metrics.New()
	}

	suite := &Suite{
		Backends:    cfg.Backends,
		Datasets:    cfg.Datasets,
		Plan:        PlanFromConfig(cfg.Benchmarks),
		Sampler:     sampler,
		Store:       results.NewStore(),
		Sinks:       []Sink{csvWriter, jsonWriter},
		Metrics:     collector,
		CallTimeout: cfg.CallTimeout,
	}
	runErr := suite.Run(ctx)

	exportPath := filepath.Join(cfg.OutputDir, ExportFileName(started))
	if err := suite.Store.ExportFile(exportPath); err != nil {
		runErr = errors.CombineErrors(runErr, errors.Wrapf(err, "export results to %s", exportPath))
	} else {
		output.Logger.Info("Results exported", "path", exportPath, "records", suite.Store.Len())
	}

	if collector != nil {
		metricsPath := filepath.Join(cfg.OutputDir, MetricsFile)
		if err := collector.WriteTextfile(metricsPath); err != nil {
			output.Logger.Error("Failed to write metrics", "path", metricsPath, "error", err)
		}
	}

	output.Logger.Info("Benchmark run finished",
		"records", suite.Store.Len(),
		"elapsed", time.Since(started).Round(time.Millisecond),
		"failed", runErr != nil,
	)
	return runErr
}
