/*
PURPOSE:
  Defines the root Cobra command for the vecbench CLI.
  Handles global flags and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Logging must be configured before any subcommand logs.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/vecbench/main.go
  - Calls: Child commands (run, list-backends, report)
  - Modifies: output.Logger (via output.Configure).

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/vecbench/main.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vecbench/internal/config"
	"github.com/daryltucker/vecbench/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:   "vecbench",
		Short: "Benchmark harness for vector databases",
		Long: `Measures insert throughput, search latency and concurrent search
throughput of vector databases against the same synthetic datasets.
Use 'run --help' for benchmark options.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return output.Configure(os.Stderr, logLevel, logFormat)
		},
	}
)

// Execute executes the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the first of "+joinFiles()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func joinFiles() string {
	s := ""
	for i, f := range config.DefaultFiles {
		if i > 0 {
			s += ", "
		}
		s += "./" + f
	}
	return s
}
