package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/config"
	"github.com/loupelabs/loupe/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "loupe",
	Short: "Query and export your LLM request analytics",
	Long: `Loupe queries a remote analytics backend for LLM request and session logs,
computes cost/token/latency metrics, and exports matching records to
jsonl, json, or csv.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds the backend client for the configured mode. Called by
// every command that talks to the analytics service.
func newClient() (api.Client, *config.Config, error) {
	cfg, err := config.EnsureAuthenticated()
	if err != nil {
		return nil, nil, err
	}
	client, err := clientFor(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// clientFor builds a client from an explicit config, authenticated or not.
func clientFor(cfg *config.Config) (api.Client, error) {
	if cfg.Mode == config.ModeGateway {
		return api.NewGatewayClient(cfg.GatewayURL, cfg.APIKey, cfg.GatewaySampleLimit)
	}
	return api.NewDirectClient(cfg.Region, cfg.APIKey, cfg.DirectSampleLimit)
}
