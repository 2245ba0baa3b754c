package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/loupelabs/loupe/pkg/filter"
	"github.com/loupelabs/loupe/pkg/timerange"
)

// filterFlags collects the convenience filter conditions shared by the
// requests, sessions, and metrics commands, plus the raw filter tree.
type filterFlags struct {
	model            string
	modelContains    string
	status           int
	userID           string
	provider         string
	startDate        string
	endDate          string
	minCost          float64
	maxCost          float64
	minLatency       int
	maxLatency       int
	properties       []string
	cached           bool
	search           string
	requestContains  string
	responseContains string

	rawFilter  string
	filterFile string
}

func registerFilterFlags(cmd *cobra.Command, f *filterFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.model, "model", "", "Filter by exact model name")
	flags.StringVar(&f.modelContains, "model-contains", "", "Filter by model name substring")
	flags.IntVar(&f.status, "status", 0, "Filter by HTTP status code")
	flags.StringVar(&f.userID, "user", "", "Filter by user ID")
	flags.StringVar(&f.provider, "provider", "", "Filter by provider name")
	flags.StringVar(&f.startDate, "start", "", "Start of time range (7d, 24h, or ISO date)")
	flags.StringVar(&f.endDate, "end", "", "End of time range (7d, 24h, or ISO date)")
	flags.Float64Var(&f.minCost, "min-cost", 0, "Minimum cost in dollars")
	flags.Float64Var(&f.maxCost, "max-cost", 0, "Maximum cost in dollars")
	flags.IntVar(&f.minLatency, "min-latency", 0, "Minimum latency in milliseconds")
	flags.IntVar(&f.maxLatency, "max-latency", 0, "Maximum latency in milliseconds")
	flags.StringArrayVar(&f.properties, "property", nil, "Filter by property (key=value, repeatable)")
	flags.BoolVar(&f.cached, "cached", false, "Filter by cache hit status")
	flags.StringVar(&f.search, "search", "", "Free-text search over request and response bodies")
	flags.StringVar(&f.requestContains, "request-contains", "", "Filter by request body substring")
	flags.StringVar(&f.responseContains, "response-contains", "", "Filter by response body substring")
	flags.StringVar(&f.rawFilter, "filter", "", "Raw filter tree as a JSON literal")
	flags.StringVar(&f.filterFile, "filter-file", "", "Raw filter tree from a JSON file")
}

// buildFilter turns the flags into one combined filter tree: the raw
// user-supplied tree (if any) AND-combined with the tree derived from the
// convenience flags.
func (f *filterFlags) buildFilter(cmd *cobra.Command) (filter.Node, error) {
	now := time.Now()
	cond := filter.Conditions{
		Model:            f.model,
		ModelContains:    f.modelContains,
		UserID:           f.userID,
		Provider:         f.provider,
		Search:           f.search,
		RequestContains:  f.requestContains,
		ResponseContains: f.responseContains,
	}

	if cmd.Flags().Changed("status") {
		cond.Status = &f.status
	}
	if cmd.Flags().Changed("min-cost") {
		cond.MinCost = &f.minCost
	}
	if cmd.Flags().Changed("max-cost") {
		cond.MaxCost = &f.maxCost
	}
	if cmd.Flags().Changed("min-latency") {
		cond.MinLatency = &f.minLatency
	}
	if cmd.Flags().Changed("max-latency") {
		cond.MaxLatency = &f.maxLatency
	}
	if cmd.Flags().Changed("cached") {
		cond.Cached = &f.cached
	}

	if f.startDate != "" {
		t, err := timerange.Parse(f.startDate, now)
		if err != nil {
			return nil, err
		}
		cond.StartDate = &t
	}
	if f.endDate != "" {
		t, err := timerange.Parse(f.endDate, now)
		if err != nil {
			return nil, err
		}
		cond.EndDate = &t
	}

	for _, raw := range f.properties {
		key, value, found := strings.Cut(raw, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid property %q (use key=value)", raw)
		}
		cond.Properties = append(cond.Properties, filter.Property{Key: key, Value: value})
	}

	derived := filter.Build(cond)

	userTree, err := f.parseRawFilter()
	if err != nil {
		return nil, err
	}

	return filter.Combine(userTree, derived), nil
}

// parseRawFilter loads the --filter / --filter-file tree. Malformed JSON is
// a fatal user error; there is nothing sensible to do with a filter we
// can't parse.
func (f *filterFlags) parseRawFilter() (filter.Node, error) {
	var data []byte
	switch {
	case f.filterFile != "":
		var err error
		data, err = os.ReadFile(f.filterFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read filter file: %w", err)
		}
	case f.rawFilter != "":
		data = []byte(f.rawFilter)
	default:
		return nil, nil
	}

	return filter.Parse(data)
}
