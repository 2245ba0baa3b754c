// Package redact scrubs credentials and other secrets from exported
// records. Request and response bodies routinely contain whatever the
// caller put in them, API keys included; exports meant to leave the
// machine can be run through a Redactor first.
package redact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loupelabs/loupe/pkg/api"
)

// Pattern is one redaction rule. A zero CaptureGroup redacts the whole
// match; a positive one redacts only that group.
type Pattern struct {
	Name         string `json:"name"`
	Pattern      string `json:"pattern"`
	Type         string `json:"type"`
	CaptureGroup int    `json:"capture_group,omitempty"`
}

// Redactor applies a compiled pattern set to strings and records.
type Redactor struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	regex        *regexp.Regexp
	patternType  string
	captureGroup int
}

// New compiles a pattern set into a Redactor.
func New(patterns []Pattern) (*Redactor, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", p.Name, err)
		}
		compiled = append(compiled, compiledPattern{
			regex:        regex,
			patternType:  p.Type,
			captureGroup: p.CaptureGroup,
		})
	}
	return &Redactor{patterns: compiled}, nil
}

// Default builds a Redactor over the built-in pattern set. The built-ins
// always compile.
func Default() *Redactor {
	r, err := New(DefaultPatterns())
	if err != nil {
		panic(err)
	}
	return r
}

// Redact scrubs all pattern matches from a string.
func (r *Redactor) Redact(input string) string {
	result := input
	for _, p := range r.patterns {
		if p.captureGroup > 0 {
			result = r.redactCaptureGroup(result, p)
		} else {
			result = r.redactFullMatch(result, p)
		}
	}
	return result
}

// RedactRecord scrubs every string value in a record, including strings
// nested inside body payloads merged in during enrichment. The record is
// modified in place and returned.
func (r *Redactor) RedactRecord(rec api.Record) api.Record {
	for key, val := range rec {
		rec[key] = r.redactValue(val)
	}
	return rec
}

func (r *Redactor) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Redact(val)
	case map[string]any:
		for k, nested := range val {
			val[k] = r.redactValue(nested)
		}
		return val
	case []any:
		for i, nested := range val {
			val[i] = r.redactValue(nested)
		}
		return val
	default:
		return v
	}
}

func (r *Redactor) redactFullMatch(input string, p compiledPattern) string {
	marker := fmt.Sprintf("[REDACTED:%s]", strings.ToUpper(p.patternType))
	return p.regex.ReplaceAllString(input, marker)
}

func (r *Redactor) redactCaptureGroup(input string, p compiledPattern) string {
	marker := fmt.Sprintf("[REDACTED:%s]", strings.ToUpper(p.patternType))

	return p.regex.ReplaceAllStringFunc(input, func(match string) string {
		submatches := p.regex.FindStringSubmatchIndex(match)
		if len(submatches) <= p.captureGroup*2+1 {
			return match
		}
		start, end := submatches[p.captureGroup*2], submatches[p.captureGroup*2+1]
		if start < 0 {
			return match
		}
		return match[:start] + marker + match[end:]
	})
}
