// cmd/blescope/root.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalnine/blescope/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "blescope",
	Short: "BLE log analysis: quality, anomalies, command chains and session diffs",
	Long: "blescope analyzes decoded BLE SDK log events. It checks logging quality\n" +
		"against a required-event catalog, detects recurring failure patterns,\n" +
		"reconstructs request chains and aligns two sessions side by side.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logging.Init(logging.ParseLevel(logLevel), logFormat, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(qualityCmd)
	rootCmd.AddCommand(anomaliesCmd)
	rootCmd.AddCommand(chainsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(collectorCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
