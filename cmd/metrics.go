package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/filter"
	"github.com/loupelabs/loupe/pkg/logger"
	"github.com/loupelabs/loupe/pkg/metrics"
	"github.com/loupelabs/loupe/pkg/utils"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Aggregate cost, token, and error metrics",
	Long: `Metrics are computed from a bounded sample of the newest matching
requests. When more records match than the sample holds, cost and token
totals are extrapolated; averages and rates come straight from the sample.`,
}

// fetchSample pulls the aggregation sample and the true matching count for
// one filter. The sample is the newest records first, capped at the
// backend's sample limit.
func fetchSample(ctx context.Context, client api.Client, f filter.Node) ([]api.Record, int, error) {
	total, err := client.CountRequests(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count matching requests: %w", err)
	}

	records, err := client.QueryRequests(ctx, api.QueryParams{
		Filter: f,
		Limit:  client.SampleLimit(),
		Sort:   &api.Sort{Field: "created_at", Direction: "desc"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch sample: %w", err)
	}

	logger.Debug("metrics sample: %d records of %d matching", len(records), total)
	return records, total, nil
}

func keyFuncFor(by string) (metrics.KeyFunc, error) {
	switch by {
	case "model":
		return metrics.KeyByModel, nil
	case "provider":
		return metrics.KeyByProvider, nil
	case "user":
		return metrics.KeyByUser, nil
	case "day":
		return metrics.KeyByDay, nil
	default:
		return nil, fmt.Errorf("unsupported grouping %q (use model, provider, user, or day)", by)
	}
}

var metricsSummaryFilters filterFlags

var metricsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Overall cost, token, latency, and error summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := metricsSummaryFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		records, total, err := fetchSample(ctx, client, f)
		if err != nil {
			return err
		}

		s := metrics.Aggregate(records, total)
		if s.SampleSize == 0 {
			fmt.Println("No requests matched the filter.")
			return nil
		}

		fmt.Printf("Matching requests:  %d\n", s.TotalCount)
		fmt.Printf("Sample size:        %d", s.SampleSize)
		if s.ScaleFactor > 1 {
			fmt.Printf(" (totals extrapolated x%.2f)", s.ScaleFactor)
		}
		fmt.Println()
		fmt.Println()
		fmt.Printf("Total cost:         %s\n", utils.FormatCost(s.TotalCost))
		fmt.Printf("Total tokens:       %s\n", utils.FormatTokens(s.TotalTokens))
		fmt.Printf("Avg cost/request:   %s\n", utils.FormatCost(s.AvgCost))
		fmt.Printf("Avg tokens/request: %s\n", utils.FormatTokens(s.AvgTokens))
		fmt.Printf("Avg latency:        %s\n", utils.FormatLatency(s.AvgLatency))
		fmt.Printf("Error rate:         %s (%d of %d sampled)\n",
			utils.FormatPercent(s.ErrorRate), s.ErrorCount, s.SampleSize)

		if len(s.ByModel) > 0 {
			fmt.Println("\nRequests by model:")
			printCountMap(s.ByModel)
		}
		if len(s.ByProvider) > 1 {
			fmt.Println("\nRequests by provider:")
			printCountMap(s.ByProvider)
		}
		return nil
	},
}

func printCountMap(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Printf("  %-40s %d\n", utils.TruncateEnd(k, 40), m[k])
	}
}

var (
	metricsCostFilters filterFlags
	metricsCostBy      string
)

var metricsCostCmd = &cobra.Command{
	Use:   "cost",
	Short: "Cost broken down by model, provider, user, or day",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keyFuncFor(metricsCostBy)
		if err != nil {
			return err
		}

		f, err := metricsCostFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		records, total, err := fetchSample(ctx, client, f)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No requests matched the filter.")
			return nil
		}

		s := metrics.Aggregate(records, total)
		groups := metrics.GroupCost(records, key)

		fmt.Printf("%-40s %8s %12s %8s\n", metricsCostBy, "COUNT", "COST", "SHARE")
		for _, g := range groups {
			fmt.Printf("%-40s %8d %12s %8s\n",
				utils.TruncateEnd(g.Key, 40), g.Count,
				utils.FormatCost(g.Value*s.ScaleFactor),
				utils.FormatPercent(g.Share))
		}
		if s.ScaleFactor > 1 {
			fmt.Printf("\nCosts extrapolated x%.2f from a sample of %d (of %d matching).\n",
				s.ScaleFactor, s.SampleSize, s.TotalCount)
		}
		return nil
	},
}

var (
	metricsErrorsFilters filterFlags
	metricsErrorsBy      string
)

var metricsErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Error counts broken down by model, provider, user, or day",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keyFuncFor(metricsErrorsBy)
		if err != nil {
			return err
		}

		f, err := metricsErrorsFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		ctx := context.Background()
		records, total, err := fetchSample(ctx, client, f)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No requests matched the filter.")
			return nil
		}

		s := metrics.Aggregate(records, total)
		if s.ErrorCount == 0 {
			fmt.Printf("No errors in a sample of %d request(s).\n", s.SampleSize)
			return nil
		}

		groups := metrics.GroupErrors(records, key)

		fmt.Printf("%-40s %8s %8s %8s\n", metricsErrorsBy, "TOTAL", "ERRORS", "SHARE")
		for _, g := range groups {
			if g.Value == 0 {
				continue
			}
			fmt.Printf("%-40s %8d %8.0f %8s\n",
				utils.TruncateEnd(g.Key, 40), g.Count, g.Value,
				utils.FormatPercent(g.Share))
		}
		fmt.Printf("\n%d error(s) in a sample of %d (%s error rate).\n",
			s.ErrorCount, s.SampleSize, utils.FormatPercent(s.ErrorRate))
		return nil
	},
}

var (
	metricsUsersFilters filterFlags
	metricsUsersLimit   int
)

var metricsUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Per-user aggregates computed server-side",
	Long: `Unlike the other metrics commands, per-user aggregates come from the
backend's own metrics endpoint and cover the full matching set, not a
sample.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := metricsUsersFilters.buildFilter(cmd)
		if err != nil {
			return err
		}

		client, _, err := newClient()
		if err != nil {
			return err
		}

		users, err := client.QueryUserMetrics(context.Background(), api.QueryParams{
			Filter: f,
			Limit:  metricsUsersLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to query user metrics: %w", err)
		}

		if len(users) == 0 {
			fmt.Println("No users matched the filter.")
			return nil
		}

		sort.SliceStable(users, func(i, j int) bool {
			return users[i].Cost > users[j].Cost
		})

		fmt.Printf("%-30s %10s %12s %14s\n", "USER", "REQUESTS", "COST", "TOKENS")
		for _, u := range users {
			fmt.Printf("%-30s %10.0f %12s %14s\n",
				utils.TruncateEnd(u.UserID, 30),
				u.TotalRequests,
				utils.FormatCost(u.Cost),
				utils.FormatTokens(u.TotalTokens))
		}
		fmt.Printf("\n%d user(s)\n", len(users))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.AddCommand(metricsSummaryCmd)
	metricsCmd.AddCommand(metricsCostCmd)
	metricsCmd.AddCommand(metricsErrorsCmd)
	metricsCmd.AddCommand(metricsUsersCmd)

	registerFilterFlags(metricsSummaryCmd, &metricsSummaryFilters)

	registerFilterFlags(metricsCostCmd, &metricsCostFilters)
	metricsCostCmd.Flags().StringVar(&metricsCostBy, "by", "model", "Group by: model, provider, user, day")

	registerFilterFlags(metricsErrorsCmd, &metricsErrorsFilters)
	metricsErrorsCmd.Flags().StringVar(&metricsErrorsBy, "by", "model", "Group by: model, provider, user, day")

	registerFilterFlags(metricsUsersCmd, &metricsUsersFilters)
	metricsUsersCmd.Flags().IntVar(&metricsUsersLimit, "limit", 100, "Maximum users to show")
}
