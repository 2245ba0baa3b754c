package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/config"
	"github.com/loupelabs/loupe/pkg/filter"
	"github.com/loupelabs/loupe/pkg/utils"
)

var statusCheck bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and authentication state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		path, err := config.Path()
		if err != nil {
			return err
		}

		fmt.Printf("Config:       %s\n", path)
		fmt.Printf("Mode:         %s\n", cfg.Mode)
		if cfg.Mode == config.ModeGateway {
			gateway := cfg.GatewayURL
			if gateway == "" {
				gateway = "(not configured)"
			}
			fmt.Printf("Gateway URL:  %s\n", gateway)
		} else {
			fmt.Printf("Region:       %s\n", cfg.Region)
		}
		fmt.Printf("Sample limit: %d\n", cfg.SampleLimit())

		if cfg.APIKey == "" {
			fmt.Println("API key:      not set (run 'loupe login')")
			return nil
		}
		fmt.Printf("API key:      %s\n", utils.TruncateSecret(cfg.APIKey, 6, 4))

		if !statusCheck {
			return nil
		}

		client, err := clientFor(cfg)
		if err != nil {
			return err
		}
		count, err := client.CountRequests(context.Background(), filter.All{})
		if err != nil {
			fmt.Printf("Backend:      unreachable (%v)\n", err)
			return nil
		}
		fmt.Printf("Backend:      reachable (%d request logs)\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "Probe the backend with an authenticated request")
}
