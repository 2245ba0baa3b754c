package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past export jobs",
}

var historyListLimit int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent export jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open()
		if err != nil {
			return err
		}
		defer store.Close()

		jobs, err := store.Recent(context.Background(), historyListLimit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No export jobs recorded.")
			return nil
		}

		fmt.Printf("%-20s %-9s %-6s %-30s %9s %-9s %10s\n",
			"STARTED", "ENTITY", "FORMAT", "OUTPUT", "EXPORTED", "STATUS", "DURATION")
		for _, job := range jobs {
			fmt.Printf("%-20s %-9s %-6s %-30s %9d %-9s %10s\n",
				job.StartedAt.Local().Format("2006-01-02 15:04:05"),
				job.Entity,
				job.Format,
				job.Output,
				job.Exported,
				job.Status,
				job.Duration.Round(10*time.Millisecond),
			)
			if job.Status == history.StatusFailed && job.Error != "" {
				fmt.Printf("  error: %s\n", job.Error)
			}
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded export jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Clear(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d export job(s) from history.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyListCmd.Flags().IntVar(&historyListLimit, "limit", 20, "Maximum jobs to show")
}
