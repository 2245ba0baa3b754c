package timerange

import (
	"strings"
	"testing"
	"time"
)

func TestParseRelative(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"24h", now.Add(-24 * time.Hour)},
		{"7d", now.Add(-7 * 24 * time.Hour)},
		{"4w", now.Add(-28 * 24 * time.Hour)},
		{"1m", now.Add(-30 * 24 * time.Hour)},
		{"90d", now.Add(-90 * 24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input, now)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAbsolute(t *testing.T) {
	now := time.Now()

	got, err := Parse("2024-01-15T10:30:00Z", now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}

	got, err = Parse("2024-01-15", now)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	want = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Parse = %v, want %v", got, want)
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("xyz", time.Now())
	if err == nil {
		t.Fatal("Parse(xyz) succeeded, want error")
	}
	// The error should tell the user what formats are accepted.
	msg := err.Error()
	if !strings.Contains(msg, "7d") || !strings.Contains(msg, "ISO") {
		t.Errorf("error does not name accepted formats: %v", err)
	}
}

func TestDurationPatternWinsOverISO(t *testing.T) {
	// "24h" could never parse as ISO, but make sure the regexp path is
	// taken before ISO parsing is even attempted for duration-shaped input.
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	got, err := Parse("2m", now)
	if err != nil {
		t.Fatalf("Parse(2m) error: %v", err)
	}
	if want := now.Add(-60 * 24 * time.Hour); !got.Equal(want) {
		t.Errorf("Parse(2m) = %v, want %v", got, want)
	}
}
