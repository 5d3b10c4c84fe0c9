package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/daryltucker/vecbench/internal/config"
	"github.com/daryltucker/vecbench/internal/dataset"
	"github.com/daryltucker/vecbench/internal/model"
)

// disconnectTimeout bounds Disconnect when the run context is already done.
const disconnectTimeout = 10 * time.Second

// Plan lists the scenario parameters run for every dataset.
type Plan struct {
	BatchSizes        []int
	TopKValues        []int
	Warmup            int
	ConcurrencyLevels []int
	ConcurrentTopK    int
}

// PlanFromConfig extracts the scenario parameters from cfg.
func PlanFromConfig(b config.Benchmarks) Plan {
	return Plan{
		BatchSizes:        b.Insert.BatchSizes,
		TopKValues:        b.Search.TopKValues,
		Warmup:            b.Search.Warmup,
		ConcurrencyLevels: b.Search.ConcurrentQueries,
		ConcurrentTopK:    b.Search.ConcurrentTopK,
	}
}

// Emit receives every completed result.
type Emit func(model.BenchmarkResult)

// RunSession connects the driver, runs the plan against each dataset in
// turn and disconnects. A connect failure returns immediately and emits
// nothing. A scenario failure skips the rest of that dataset; the errors
// of all datasets are combined in the returned error.
func (o *Orchestrator) RunSession(ctx context.Context, datasets []dataset.Dataset, plan Plan, emit Emit) error {
	defer o.disconnect(ctx)

	if _, err := o.call(ctx, "connect", model.ErrConnection, o.driver.Connect); err != nil {
		o.logger.Error("Connect failed, skipping backend", "error", err)
		return &ScenarioError{Backend: o.driver.Name(), Scenario: "connect", Err: err}
	}
	o.logger.Info("Connected")

	var errs error
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return errors.CombineErrors(errs, err)
		}
		if err := o.runDataset(ctx, ds, plan, emit); err != nil {
			o.logger.Error("Benchmark failed, skipping remaining scenarios", "dataset", ds.Name, "error", err)
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (o *Orchestrator) runDataset(ctx context.Context, ds dataset.Dataset, plan Plan, emit Emit) error {
	defer o.Cleanup(context.WithoutCancel(ctx), ds.Name)

	o.logger.Info("Benchmarking dataset",
		"dataset", ds.Name,
		"vectors", len(ds.Vectors),
		"dimension", ds.Dimension(),
		"queries", len(ds.Queries),
	)

	for _, bs := range plan.BatchSizes {
		r, err := o.BenchmarkInsert(ctx, ds.Name, ds.Vectors, ds.Metadata, bs)
		if err != nil {
			return err
		}
		emit(r)
	}
	for _, k := range plan.TopKValues {
		r, err := o.BenchmarkSearch(ctx, ds.Name, ds.Queries, k, plan.Warmup)
		if err != nil {
			return err
		}
		emit(r)
	}
	for _, c := range plan.ConcurrencyLevels {
		r, err := o.BenchmarkConcurrentSearch(ctx, ds.Name, ds.Queries, plan.ConcurrentTopK, c)
		if err != nil {
			return err
		}
		emit(r)
	}
	return nil
}

func (o *Orchestrator) disconnect(ctx context.Context) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()
	if err := o.driver.Disconnect(dctx); err != nil {
		o.logger.Warn("Disconnect failed", "error", err)
		return
	}
	o.logger.Debug("Disconnected")
}
