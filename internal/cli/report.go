package cli

import (
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/daryltucker/vecbench/internal/output"
	"github.com/daryltucker/vecbench/internal/report"
)

var reportDir string

var reportCmd = &cobra.Command{
	Use:   "report [results.json]",
	Short: "Print comparison tables for an exported run",
	Long: `Reads a benchmark_results_<timestamp>.json export and prints one table
per operation. Without an argument the newest export in --dir is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			latest, err := latestExport(reportDir)
			if err != nil {
				return err
			}
			path = latest
		}

		output.Logger.Debug("Loading results", "path", path)
		rs, err := report.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load %s", path)
		}
		return report.Render(cmd.OutOrStdout(), rs)
	},
}

// latestExport returns the newest export in dir. Export names embed a
// sortable timestamp.
func latestExport(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "benchmark_results_*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.Newf("no benchmark_results_*.json in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportDir, "dir", "./results", "Directory searched for the newest export")
}
