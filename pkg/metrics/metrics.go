// Package metrics computes summary statistics from a bounded sample of
// matching records. Aggregation never fetches the full matching set; sums
// are extrapolated from the sample when the true population is larger.
package metrics

import (
	"sort"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
)

// Summary holds the aggregates computed from one sample.
type Summary struct {
	SampleSize  int
	TotalCount  int
	ScaleFactor float64

	// Extrapolated population-level estimates.
	TotalCost   float64
	TotalTokens float64

	// Sample means, assumed representative; never rescaled.
	AvgCost    float64
	AvgTokens  float64
	AvgLatency float64

	// Sample-level sums and counts.
	SampleCost    float64
	SampleLatency float64
	SuccessCount  int
	ErrorCount    int
	ErrorRate     float64 // percent of sample

	ByModel    map[string]int
	ByProvider map[string]int
}

// Aggregate computes a Summary from the in-hand sample. trueTotal is the
// backend's count for the same filter; it is advisory (the count endpoint
// sometimes reports zero spuriously) and is clamped to at least the sample
// size so the scale factor never drops below 1.
func Aggregate(records []api.Record, trueTotal int) Summary {
	s := Summary{
		SampleSize: len(records),
		ByModel:    make(map[string]int),
		ByProvider: make(map[string]int),
	}

	if trueTotal < len(records) {
		trueTotal = len(records)
	}
	s.TotalCount = trueTotal

	var tokenSum float64
	for _, rec := range records {
		if cost, ok := rec.Float("cost"); ok {
			s.SampleCost += cost
		}
		if tokens, ok := rec.Float("total_tokens"); ok {
			// Token counts sometimes arrive as numeric strings; Float
			// already tolerates that.
			tokenSum += tokens
		}
		if latency, ok := rec.Float("latency"); ok {
			s.SampleLatency += latency
		}

		if status, ok := rec.Int("status"); ok {
			switch {
			case status >= 200 && status < 300:
				s.SuccessCount++
			case status >= 400:
				s.ErrorCount++
			}
		}

		s.ByModel[rec.StrOr("model", "unknown")]++
		s.ByProvider[rec.StrOr("provider", "unknown")]++
	}

	s.ScaleFactor = 1
	if s.SampleSize > 0 && trueTotal > s.SampleSize {
		s.ScaleFactor = float64(trueTotal) / float64(s.SampleSize)
	}

	s.TotalCost = s.SampleCost * s.ScaleFactor
	s.TotalTokens = tokenSum * s.ScaleFactor

	if s.SampleSize > 0 {
		n := float64(s.SampleSize)
		s.AvgCost = s.SampleCost / n
		s.AvgTokens = tokenSum / n
		s.AvgLatency = s.SampleLatency / n
		s.ErrorRate = float64(s.ErrorCount) / n * 100
	}

	return s
}

// KeyFunc extracts a grouping key from a record. Missing values bucket
// under "unknown".
type KeyFunc func(api.Record) string

// KeyByModel groups by model name.
func KeyByModel(rec api.Record) string {
	return rec.StrOr("model", "unknown")
}

// KeyByProvider groups by provider name.
func KeyByProvider(rec api.Record) string {
	return rec.StrOr("provider", "unknown")
}

// KeyByUser groups by user id.
func KeyByUser(rec api.Record) string {
	return rec.StrOr("user_id", "unknown")
}

// KeyByDay truncates the record's creation time to its calendar day.
func KeyByDay(rec api.Record) string {
	raw := rec.Str("created_at")
	if raw == "" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02")
}

// Group is one bucket of a grouped metric, with its share of the summed
// total as a percentage.
type Group struct {
	Key   string
	Count int
	Value float64
	Share float64 // percent of the metric total
}

// GroupCost buckets cost by the given key, sorted descending by cost.
func GroupCost(records []api.Record, key KeyFunc) []Group {
	return groupBy(records, key, func(rec api.Record) float64 {
		cost, _ := rec.Float("cost")
		return cost
	})
}

// GroupErrors buckets error counts (status >= 400) by the given key, sorted
// descending by count.
func GroupErrors(records []api.Record, key KeyFunc) []Group {
	return groupBy(records, key, func(rec api.Record) float64 {
		if status, ok := rec.Int("status"); ok && status >= 400 {
			return 1
		}
		return 0
	})
}

func groupBy(records []api.Record, key KeyFunc, value func(api.Record) float64) []Group {
	buckets := make(map[string]*Group)
	var order []string
	var total float64

	for _, rec := range records {
		k := key(rec)
		g, ok := buckets[k]
		if !ok {
			g = &Group{Key: k}
			buckets[k] = g
			order = append(order, k)
		}
		g.Count++
		v := value(rec)
		g.Value += v
		total += v
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		g := *buckets[k]
		if total > 0 {
			g.Share = g.Value / total * 100
		}
		groups = append(groups, g)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Value > groups[j].Value
	})
	return groups
}
