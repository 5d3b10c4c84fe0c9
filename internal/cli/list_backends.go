/*
PURPOSE:
  Defines the 'list-backends' subcommand.
  Helps debug connectivity before a full run.

REQUIREMENTS:
  User-specified:
  - List configured backends.

  Implementation-discovered:
  - Useful validation step before full run: each backend is connected
    and disconnected once unless --no-probe is given.

ARCHITECTURE INTEGRATION:
  - Calls: internal/backend.New, driver.Connect/Disconnect

ERROR HANDLING:
  - Prints the error per backend and keeps going.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  vecbench list-backends

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/backend/factory.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/vecbench/internal/backend"
	"github.com/daryltucker/vecbench/internal/config"
)

var (
	noProbe      bool
	probeTimeout time.Duration
)

var listBackendsCmd = &cobra.Command{
	Use:   "list-backends",
	Short: "List configured backends and check they are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		for _, b := range cfg.Backends {
			fmt.Fprintf(out, "- %s (type=%s)", b.Label(), b.Type)
			if noProbe {
				fmt.Fprintln(out)
				continue
			}
			fmt.Fprintf(out, ": %s\n", probe(cmd.Context(), b))
		}
		fmt.Fprintf(out, "supported types: %v\n", backend.Types())
		return nil
	},
}

func probe(ctx context.Context, b config.Backend) string {
	d, err := backend.New(b)
	if err != nil {
		return "invalid: " + err.Error()
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err = d.Connect(ctx)
	defer d.Disconnect(context.WithoutCancel(ctx))
	if err != nil {
		return "unreachable: " + err.Error()
	}
	return fmt.Sprintf("ok (%s)", time.Since(start).Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(listBackendsCmd)
	listBackendsCmd.Flags().BoolVar(&noProbe, "no-probe", false, "Only list, do not connect")
	listBackendsCmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 5*time.Second, "Connect timeout per backend")
}
