package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

var (
	// Global flags
	configPath string
	logLevel   string
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an error to a process exit code: 2 for invalid input,
// 3 when a conversion is unavailable, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case qerrors.IsInvalid(err):
		return 2
	case qerrors.IsUnavailable(err):
		return 3
	default:
		return 1
	}
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qbraid",
		Short: "qBraid - quantum program conversion",
		Long: `qbraid converts quantum programs between frameworks by routing them through
a graph of converters.

Features:
  - Cheapest-path routing that avoids lossy conversions
  - Optional extras probed at runtime
  - Gate-set rebasing onto device bases
  - WASM and Starlark converter plugins
  - Rego policies over conversion paths
  - Job submission to configured devices`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $QBRAID_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newTranspileCommand())
	rootCmd.AddCommand(newPathCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newExtrasCommand())
	rootCmd.AddCommand(newRebaseCommand())
	rootCmd.AddCommand(newDevicesCommand())
	rootCmd.AddCommand(newSubmitCommand())
	rootCmd.AddCommand(newJobsCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
