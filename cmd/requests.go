package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/export"
	"github.com/loupelabs/loupe/pkg/history"
	"github.com/loupelabs/loupe/pkg/logger"
	"github.com/loupelabs/loupe/pkg/utils"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Query and export request logs",
}

var (
	requestsListFilters filterFlags
	requestsListLimit   int
	requestsListSort    string
	requestsListOrder   string
)

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List matching request logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := requestsListFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		records, err := client.QueryRequests(ctx, api.QueryParams{
			Filter: f,
			Limit:  requestsListLimit,
			Sort:   &api.Sort{Field: requestsListSort, Direction: requestsListOrder},
		})
		if err != nil {
			return fmt.Errorf("failed to query requests: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No requests matched the filter.")
			return nil
		}

		fmt.Printf("%-38s %-22s %-28s %6s %10s %8s\n",
			"REQUEST ID", "CREATED", "MODEL", "STATUS", "COST", "LATENCY")
		for _, rec := range records {
			printRequestRow(rec)
		}
		fmt.Printf("\n%d request(s)\n", len(records))
		return nil
	},
}

func printRequestRow(rec api.Record) {
	cost := "N/A"
	if c, ok := rec.Float("cost"); ok {
		cost = utils.FormatCost(c)
	}
	latency := "N/A"
	if l, ok := rec.Float("latency"); ok {
		latency = utils.FormatLatency(l)
	}
	status := "N/A"
	if s, ok := rec.Int("status"); ok {
		status = fmt.Sprintf("%d", s)
	}

	fmt.Printf("%-38s %-22s %-28s %6s %10s %8s\n",
		rec.StrOr("request_id", "N/A"),
		rec.StrOr("created_at", "N/A"),
		utils.TruncateEnd(rec.StrOr("model", "unknown"), 28),
		status,
		cost,
		latency,
	)
}

var requestsGetIncludeBody bool

var requestsGetCmd = &cobra.Command{
	Use:   "get <request-id>",
	Short: "Fetch one request by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		rec, err := client.GetRequest(context.Background(), args[0], requestsGetIncludeBody)
		if err != nil {
			return fmt.Errorf("failed to get request: %w", err)
		}

		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render request: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}

var (
	requestsExportFilters   filterFlags
	requestsExportFormat    string
	requestsExportOutput    string
	requestsExportMax       int
	requestsExportBatchSize int
	requestsExportBody      bool
	requestsExportRedact    bool
	requestsExportFields    []string
)

var requestsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching request logs to a file",
	Long: `Export streams every matching request log to a file without holding the
result set in memory. Formats: jsonl (default), json (single array), csv.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := requestsExportFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		source := export.NewRequestSource(client, api.QueryParams{
			Filter: f,
			Sort:   &api.Sort{Field: "created_at", Direction: "desc"},
		})

		var enrich export.Enricher
		if requestsExportBody {
			enrich = export.BodyEnricher(client)
		}
		enrich, err = withRedaction(enrich, requestsExportRedact)
		if err != nil {
			return err
		}

		return runExport(exportJob{
			entity:    "requests",
			source:    source,
			format:    requestsExportFormat,
			output:    requestsExportOutput,
			max:       requestsExportMax,
			batchSize: requestsExportBatchSize,
			enrich:    enrich,
			csvFields: requestsExportFields,
		})
	},
}

// exportJob carries everything runExport needs; shared by the requests and
// sessions export commands.
type exportJob struct {
	entity    string
	source    export.Source
	format    string
	output    string
	max       int
	batchSize int
	enrich    export.Enricher
	csvFields []string
}

func runExport(job exportJob) error {
	if job.output == "" {
		job.output = fmt.Sprintf("%s-export.%s", job.entity, job.format)
	}

	out, err := os.Create(job.output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	var fields []string
	if job.csvFields != nil {
		fields = job.csvFields
	} else if job.entity == "sessions" {
		fields = export.DefaultSessionFields
	}

	sink, err := export.NewSink(job.format, out, fields)
	if err != nil {
		out.Close()
		os.Remove(job.output)
		return err
	}

	started := time.Now()
	ctx := context.Background()
	progress := export.NewReporter()

	res, runErr := export.Run(ctx, job.source, sink, export.Options{
		Max:       job.max,
		BatchSize: job.batchSize,
		Enrich:    job.enrich,
		Progress:  progress,
	})

	// The sink owns the stream; close it on both paths so a failed job
	// never leaks the file handle. Partial output stays on disk.
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	recordExportJob(ctx, job, res, started, runErr)

	if runErr != nil {
		return fmt.Errorf("export failed after %d record(s): %w", res.Exported, runErr)
	}

	if res.Requested == 0 {
		fmt.Println("No records matched the filter; nothing exported.")
		os.Remove(job.output)
		return nil
	}

	progress.Done(res.Exported)
	fmt.Printf("✓ Exported %d record(s) to %s\n", res.Exported, job.output)
	return nil
}

// recordExportJob writes the job outcome to local history. History is
// bookkeeping; failures here must not fail the export itself.
func recordExportJob(ctx context.Context, job exportJob, res export.Result, started time.Time, runErr error) {
	store, err := history.Open()
	if err != nil {
		logger.Warn("failed to open export history: %v", err)
		return
	}
	defer store.Close()

	entry := history.Job{
		Entity:    job.entity,
		Format:    job.format,
		Output:    job.output,
		Requested: res.Requested,
		Exported:  res.Exported,
		Status:    history.StatusCompleted,
		StartedAt: started,
		Duration:  res.Elapsed,
	}
	if runErr != nil {
		entry.Status = history.StatusFailed
		entry.Error = runErr.Error()
	}

	if _, err := store.Record(ctx, entry); err != nil {
		logger.Warn("failed to record export history: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsGetCmd)
	requestsCmd.AddCommand(requestsExportCmd)

	registerFilterFlags(requestsListCmd, &requestsListFilters)
	requestsListCmd.Flags().IntVar(&requestsListLimit, "limit", 25, "Maximum rows to list")
	requestsListCmd.Flags().StringVar(&requestsListSort, "sort", "created_at", "Sort field")
	requestsListCmd.Flags().StringVar(&requestsListOrder, "order", "desc", "Sort direction (asc or desc)")

	requestsGetCmd.Flags().BoolVar(&requestsGetIncludeBody, "include-body", false, "Fetch the request/response bodies too")

	registerFilterFlags(requestsExportCmd, &requestsExportFilters)
	requestsExportCmd.Flags().StringVar(&requestsExportFormat, "format", "jsonl", "Output format: jsonl, json, csv")
	requestsExportCmd.Flags().StringVarP(&requestsExportOutput, "output", "o", "", "Output file (default requests-export.<format>)")
	requestsExportCmd.Flags().IntVar(&requestsExportMax, "max", 0, "Maximum records to export (0 = everything matching)")
	requestsExportCmd.Flags().IntVar(&requestsExportBatchSize, "batch-size", export.DefaultBatchSize, "Records fetched per request")
	requestsExportCmd.Flags().BoolVar(&requestsExportBody, "include-body", false, "Enrich each record with its signed body payload")
	requestsExportCmd.Flags().BoolVar(&requestsExportRedact, "redact", false, "Scrub known secret patterns from exported records")
	requestsExportCmd.Flags().StringSliceVar(&requestsExportFields, "fields", nil, "CSV columns (default: standard request fields)")
}
