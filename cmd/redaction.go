package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/export"
	"github.com/loupelabs/loupe/pkg/redact"
)

// withRedaction layers secret scrubbing on top of an existing enricher
// when enabled.
func withRedaction(enrich export.Enricher, enabled bool) (export.Enricher, error) {
	if !enabled {
		return enrich, nil
	}

	r, err := redact.Load()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, rec api.Record) api.Record {
		if enrich != nil {
			rec = enrich(ctx, rec)
		}
		return r.RedactRecord(rec)
	}, nil
}

var redactionCmd = &cobra.Command{
	Use:   "redaction",
	Short: "Manage export redaction patterns",
	Long: `Exports run with --redact scrub known secret patterns (API keys,
tokens, connection-string passwords) from every record. The built-in
pattern set can be replaced with a custom one in the config directory.`,
}

var redactionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in patterns to an editable config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := redact.WriteDefaultConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d default pattern(s) to %s\n", len(redact.DefaultPatterns()), path)
		return nil
	},
}

var redactionListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the active redaction patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := redact.ConfigPath()
		if err != nil {
			return err
		}

		patterns, source, err := redact.ActivePatterns()
		if err != nil {
			return err
		}
		if source == redact.SourceBuiltin {
			fmt.Printf("Using built-in patterns (no custom file at %s):\n\n", path)
		} else {
			fmt.Printf("Using custom patterns from %s:\n\n", path)
		}

		for _, p := range patterns {
			fmt.Printf("  %-32s %s\n", p.Name, p.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redactionCmd)
	redactionCmd.AddCommand(redactionInitCmd)
	redactionCmd.AddCommand(redactionListCmd)
}
