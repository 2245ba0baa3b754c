package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/loupelabs/loupe/pkg/filter"
)

// MaxPageSize is the hard per-request limit the backend enforces. Larger
// limits are clamped client-side rather than rejected.
const MaxPageSize = 1000

// ErrUnsupported is returned by a backend for operations it cannot serve
// (the gateway path has no session endpoints).
var ErrUnsupported = errors.New("operation not supported by this backend")

// Record is one request or session log entry as returned by the backend.
// The shape is fixed per entity but the pipeline only ever accesses fields
// by name, so it stays schemaless on this side.
type Record map[string]any

// Str returns the named field as a string, or "" when missing or not a
// string.
func (r Record) Str(key string) string {
	s, _ := r[key].(string)
	return s
}

// StrOr returns the named field as a string, or fallback when missing/empty.
func (r Record) StrOr(key, fallback string) string {
	if s := r.Str(key); s != "" {
		return s
	}
	return fallback
}

// Float returns the named field as a float64. Numeric strings are parsed:
// the backend serializes some counters (token counts in particular) as
// strings.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the named field as an int, with the same string tolerance as
// Float.
func (r Record) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Sort orders query results by a single field.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" or "desc"
}

// QueryParams is the window and filter for one page of a query.
type QueryParams struct {
	Filter             filter.Node `json:"filter"`
	Offset             int         `json:"offset"`
	Limit              int         `json:"limit"`
	Sort               *Sort       `json:"sort,omitempty"`
	IsCached           bool        `json:"isCached"`
	IncludeInputs      bool        `json:"includeInputs"`
	IsPartOfExperiment bool        `json:"isPartOfExperiment"`
	IsScored           bool        `json:"isScored"`
}

// normalized returns a copy safe to send: nil filter becomes All and the
// limit is clamped to the backend maximum.
func (p QueryParams) normalized() QueryParams {
	if p.Filter == nil {
		p.Filter = filter.All{}
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// BodyPayload is a signed-URL body fetched during enrichment. Either side
// may be absent.
type BodyPayload struct {
	Request  any `json:"request,omitempty"`
	Response any `json:"response,omitempty"`
}

// Empty reports whether the payload carries nothing worth merging.
func (b BodyPayload) Empty() bool {
	return b.Request == nil && b.Response == nil
}

// UserMetric is a per-user aggregate computed server-side for the
// group-by-user metrics path.
type UserMetric struct {
	UserID        string  `json:"user_id"`
	ActiveFor     float64 `json:"active_for"`
	TotalRequests float64 `json:"total_requests"`
	Cost          float64 `json:"cost"`
	TotalTokens   float64 `json:"total_tokens"`
}

// Client is the query contract the retrieval and aggregation pipeline
// depends on. Two implementations exist: the direct backend (full
// capability, regional endpoints) and the gateway backend (intermediary
// base URL, no session endpoints). Errors are ordinary values; transient
// transport failures are retried below this interface and anything
// surfaced here is final for the current operation.
type Client interface {
	QueryRequests(ctx context.Context, p QueryParams) ([]Record, error)
	CountRequests(ctx context.Context, f filter.Node) (int, error)
	GetRequest(ctx context.Context, id string, includeBody bool) (Record, error)

	// FetchSignedBody is best-effort: any failure yields an empty payload,
	// never an error.
	FetchSignedBody(ctx context.Context, url string) BodyPayload

	QuerySessions(ctx context.Context, p QueryParams) ([]Record, error)
	CountSessions(ctx context.Context, f filter.Node) (int, error)

	QueryUserMetrics(ctx context.Context, p QueryParams) ([]UserMetric, error)

	// SampleLimit is the largest sample this backend should be asked for
	// when aggregating locally.
	SampleLimit() int
}
