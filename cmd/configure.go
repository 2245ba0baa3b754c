package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/config"
)

var (
	configureMode        string
	configureRegion      string
	configureGatewayURL  string
	configureSampleLimit int
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set backend mode, region, and gateway URL",
	Long: `Configure selects the backend: direct mode talks to the regional
analytics API, gateway mode routes through a configured intermediary.
Only flags you pass are changed; everything else keeps its value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		changed := false
		if cmd.Flags().Changed("mode") {
			cfg.Mode = configureMode
			changed = true
		}
		if cmd.Flags().Changed("region") {
			cfg.Region = configureRegion
			changed = true
		}
		if cmd.Flags().Changed("gateway-url") {
			cfg.GatewayURL = configureGatewayURL
			changed = true
		}
		if cmd.Flags().Changed("sample-limit") {
			if configureSampleLimit <= 0 {
				return fmt.Errorf("sample limit must be positive")
			}
			if cfg.Mode == config.ModeGateway {
				cfg.GatewaySampleLimit = configureSampleLimit
			} else {
				cfg.DirectSampleLimit = configureSampleLimit
			}
			changed = true
		}

		if !changed {
			return cmd.Help()
		}

		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Printf("Configuration saved. Mode: %s", cfg.Mode)
		if cfg.Mode == config.ModeGateway {
			fmt.Printf(", gateway: %s", cfg.GatewayURL)
		} else {
			fmt.Printf(", region: %s", cfg.Region)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVar(&configureMode, "mode", "", "Backend mode: direct or gateway")
	configureCmd.Flags().StringVar(&configureRegion, "region", "", "Direct-mode region: us or eu")
	configureCmd.Flags().StringVar(&configureGatewayURL, "gateway-url", "", "Gateway base URL")
	configureCmd.Flags().IntVar(&configureSampleLimit, "sample-limit", 0, "Aggregation sample cap for the active mode")
}
