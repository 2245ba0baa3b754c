package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/config"
	"github.com/loupelabs/loupe/pkg/filter"
	"github.com/loupelabs/loupe/pkg/logger"
	"github.com/loupelabs/loupe/pkg/utils"
)

var (
	loginAPIKey   string
	loginNoVerify bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store your API key",
	Long: `Login stores an API key in ~/.loupe/config.json. The key is verified
against the backend with a lightweight query unless --no-verify is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.TrimSpace(loginAPIKey)
		if key == "" {
			fmt.Print("API key: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = strings.TrimSpace(line)
		}
		if key == "" {
			return fmt.Errorf("no API key provided")
		}

		if err := config.ValidateAPIKey(key); err != nil {
			return fmt.Errorf("invalid API key: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.APIKey = key

		if !loginNoVerify {
			if err := verifyKey(cfg); err != nil {
				return fmt.Errorf("API key verification failed: %w", err)
			}
			fmt.Println("API key verified.")
		}

		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		logger.Info("login: stored key %s", utils.TruncateSecret(key, 6, 4))
		fmt.Printf("Logged in. Key %s saved to config.\n", utils.TruncateSecret(key, 6, 4))
		return nil
	},
}

// verifyKey issues the cheapest authenticated call the backend supports.
func verifyKey(cfg *config.Config) error {
	client, err := clientFor(cfg)
	if err != nil {
		return err
	}
	_, err = client.CountRequests(context.Background(), filter.All{})
	return err
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.APIKey == "" {
			fmt.Println("Not logged in.")
			return nil
		}

		cfg.APIKey = ""
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Println("Logged out. API key removed from config.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "API key (prompted for if omitted)")
	loginCmd.Flags().BoolVar(&loginNoVerify, "no-verify", false, "Skip the verification request")
}
