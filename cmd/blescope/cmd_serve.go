// cmd/blescope/cmd_serve.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/signalnine/blescope/internal/agent"
	"github.com/signalnine/blescope/internal/collector"
	"github.com/signalnine/blescope/internal/config"
)

var (
	agentConfigPath     string
	collectorConfigPath string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the ingestion agent",
	Long:  "Tails a decoded BLE event log and ships new events to the collector.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadAgentConfig(agentConfigPath)
		if err != nil {
			return fmt.Errorf("load agent config: %w", err)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return agent.New(cfg).Run(ctx)
	},
}

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the central collector",
	Long:  "Stores agent batches in SQLite and serves reports over HTTP(S).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadCollectorConfig(collectorConfigPath)
		if err != nil {
			return fmt.Errorf("load collector config: %w", err)
		}
		srv, err := collector.NewServer(cfg)
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return srv.Run(ctx)
	},
}

func init() {
	agentCmd.Flags().StringVar(&agentConfigPath, "config", "/etc/blescope/agent.yaml", "agent config file")
	collectorCmd.Flags().StringVar(&collectorConfigPath, "config", "/etc/blescope/collector.yaml", "collector config file")
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
