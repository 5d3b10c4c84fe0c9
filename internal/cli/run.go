/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark suite.

REQUIREMENTS:
  User-specified:
  - Run the benchmarks.
  - specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config, then validate once.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load/validation fails or any backend fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Validate -> Engine.Run.

USAGE:
  vecbench run --backends qdrant,vecgo -o ./results

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vecbench/internal/config"
	"github.com/daryltucker/vecbench/internal/engine"
)

var (
	backendsOverride []string
	datasetsOverride []string
	outputOverride   string
	timeoutOverride  time.Duration
	noMetrics        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark suite",
	Long: `Executes the full benchmark suite against every configured backend.
For each backend and dataset the protocol is:
1. Insert: one timed insert of the whole dataset per batch size.
2. Search: warmup queries, then one timed query at a time per top_k.
3. Concurrent search: the queries split across N workers per concurrency level.

Results are streamed to results.csv and results.jsonl, and the whole run is
exported to benchmark_results_<timestamp>.json in the output directory.`,
	Example: `  # Run with defaults (uses vecbench.yaml if present)
  vecbench run

  # Only two backends, custom output directory
  vecbench run --backends qdrant,vecgo -o ./benchmarks

  # Only the small dataset, with a tighter per-call timeout
  vecbench run --datasets small --timeout 10s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		if err := cfg.SelectBackends(backendsOverride); err != nil {
			return err
		}
		if err := cfg.SelectDatasets(datasetsOverride); err != nil {
			return err
		}
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if timeoutOverride > 0 {
			cfg.CallTimeout = timeoutOverride
		}
		if noMetrics {
			cfg.Metrics = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// 3. Execution
		return engine.Run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&backendsOverride, "backends", nil, "Comma-separated list of backend names to run (default: all configured)")
	runCmd.Flags().StringSliceVar(&datasetsOverride, "datasets", nil, "Comma-separated list of dataset names to run (default: all configured)")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSON)")
	runCmd.Flags().DurationVar(&timeoutOverride, "timeout", 0, "Per-call timeout for backend operations (overrides config)")
	runCmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Do not write the Prometheus metrics file")
}
