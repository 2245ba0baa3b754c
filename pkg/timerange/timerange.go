package timerange

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches relative ranges like "24h", "7d", "4w", "1m".
var durationPattern = regexp.MustCompile(`^(\d+)([hdwm])$`)

// Parse turns a time-range string into an absolute instant relative to now.
// Relative forms ("24h", "7d", "4w", "1m") are checked first; anything else
// is parsed as an ISO date ("2006-01-02T15:04:05Z" or "2006-01-02").
// A month is approximated as exactly 30 days.
func Parse(s string, now time.Time) (time.Time, error) {
	if m := durationPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration magnitude %q: %w", m[1], err)
		}

		var unit time.Duration
		switch m[2] {
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		case "m":
			unit = 30 * 24 * time.Hour
		}

		return now.Add(-time.Duration(n) * unit), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("invalid time range %q: use a relative duration (24h, 7d, 4w, 1m) or an ISO date (2024-01-15 or 2024-01-15T10:30:00Z)", s)
}
