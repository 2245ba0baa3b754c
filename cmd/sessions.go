package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/export"
	"github.com/loupelabs/loupe/pkg/utils"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Query and export session logs",
	Long: `Session queries are only available in direct mode; the gateway backend
does not expose them.`,
}

var (
	sessionsListFilters filterFlags
	sessionsListLimit   int
)

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List matching session logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := sessionsListFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		records, err := client.QuerySessions(context.Background(), api.QueryParams{
			Filter: f,
			Limit:  sessionsListLimit,
			Sort:   &api.Sort{Field: "created_at", Direction: "desc"},
		})
		if err != nil {
			if errors.Is(err, api.ErrUnsupported) {
				return fmt.Errorf("sessions are unavailable in gateway mode; switch with 'loupe configure --mode direct'")
			}
			return fmt.Errorf("failed to query sessions: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No sessions matched the filter.")
			return nil
		}

		fmt.Printf("%-38s %-22s %-12s %8s %10s\n",
			"SESSION ID", "CREATED", "USER", "REQUESTS", "COST")
		for _, rec := range records {
			cost := "N/A"
			if c, ok := rec.Float("total_cost"); ok {
				cost = utils.FormatCost(c)
			}
			count := "N/A"
			if n, ok := rec.Int("request_count"); ok {
				count = fmt.Sprintf("%d", n)
			}
			fmt.Printf("%-38s %-22s %-12s %8s %10s\n",
				rec.StrOr("session_id", "N/A"),
				rec.StrOr("created_at", "N/A"),
				utils.TruncateEnd(rec.StrOr("user_id", "unknown"), 12),
				count,
				cost,
			)
		}
		fmt.Printf("\n%d session(s)\n", len(records))
		return nil
	},
}

var (
	sessionsExportFilters   filterFlags
	sessionsExportFormat    string
	sessionsExportOutput    string
	sessionsExportMax       int
	sessionsExportBatchSize int
	sessionsExportRedact    bool
	sessionsExportFields    []string
)

var sessionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching session logs to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := sessionsExportFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		source := export.NewSessionSource(client, api.QueryParams{
			Filter: f,
			Sort:   &api.Sort{Field: "created_at", Direction: "desc"},
		})

		enrich, err := withRedaction(nil, sessionsExportRedact)
		if err != nil {
			return err
		}

		err = runExport(exportJob{
			entity:    "sessions",
			source:    source,
			format:    sessionsExportFormat,
			output:    sessionsExportOutput,
			max:       sessionsExportMax,
			batchSize: sessionsExportBatchSize,
			enrich:    enrich,
			csvFields: sessionsExportFields,
		})
		if err != nil && errors.Is(err, api.ErrUnsupported) {
			return fmt.Errorf("sessions are unavailable in gateway mode; switch with 'loupe configure --mode direct'")
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)

	registerFilterFlags(sessionsListCmd, &sessionsListFilters)
	sessionsListCmd.Flags().IntVar(&sessionsListLimit, "limit", 25, "Maximum rows to list")

	registerFilterFlags(sessionsExportCmd, &sessionsExportFilters)
	sessionsExportCmd.Flags().StringVar(&sessionsExportFormat, "format", "jsonl", "Output format: jsonl, json, csv")
	sessionsExportCmd.Flags().StringVarP(&sessionsExportOutput, "output", "o", "", "Output file (default sessions-export.<format>)")
	sessionsExportCmd.Flags().IntVar(&sessionsExportMax, "max", 0, "Maximum records to export (0 = everything matching)")
	sessionsExportCmd.Flags().IntVar(&sessionsExportBatchSize, "batch-size", export.DefaultBatchSize, "Records fetched per request")
	sessionsExportCmd.Flags().BoolVar(&sessionsExportRedact, "redact", false, "Scrub known secret patterns from exported records")
	sessionsExportCmd.Flags().StringSliceVar(&sessionsExportFields, "fields", nil, "CSV columns (default: standard session fields)")
}
