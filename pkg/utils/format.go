package utils

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatCost renders a dollar amount for display. Small per-request costs
// get more precision than totals.
func FormatCost(cost float64) string {
	if cost == 0 {
		return "$0.00"
	}
	if cost < 0.01 {
		return fmt.Sprintf("$%.6f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatTokens renders a token count with thousands separators.
func FormatTokens(tokens float64) string {
	return humanize.Comma(int64(tokens + 0.5))
}

// FormatLatency renders a millisecond latency for display.
func FormatLatency(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}
