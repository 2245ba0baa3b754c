package export

import (
	"context"

	"github.com/loupelabs/loupe/pkg/api"
)

// requestSource pages through request records matching a base query.
type requestSource struct {
	client api.Client
	base   api.QueryParams
}

// NewRequestSource adapts the request endpoints of the query contract to a
// Source. The base params carry the filter, sort, and query hints; offset
// and limit are overwritten per page.
func NewRequestSource(client api.Client, base api.QueryParams) Source {
	return &requestSource{client: client, base: base}
}

func (s *requestSource) Count(ctx context.Context) (int, error) {
	return s.client.CountRequests(ctx, s.base.Filter)
}

func (s *requestSource) Page(ctx context.Context, offset, limit int) ([]api.Record, error) {
	p := s.base
	p.Offset = offset
	p.Limit = limit
	return s.client.QueryRequests(ctx, p)
}

// sessionSource is the session analogue of requestSource.
type sessionSource struct {
	client api.Client
	base   api.QueryParams
}

// NewSessionSource adapts the session endpoints to a Source. On the gateway
// backend the first Count call surfaces ErrUnsupported.
func NewSessionSource(client api.Client, base api.QueryParams) Source {
	return &sessionSource{client: client, base: base}
}

func (s *sessionSource) Count(ctx context.Context) (int, error) {
	return s.client.CountSessions(ctx, s.base.Filter)
}

func (s *sessionSource) Page(ctx context.Context, offset, limit int) ([]api.Record, error) {
	p := s.base
	p.Offset = offset
	p.Limit = limit
	return s.client.QuerySessions(ctx, p)
}

// BodyEnricher returns an Enricher that pulls each record's signed body
// payload and merges it in before export. Fetch or parse failures leave the
// record as-is; enrichment never aborts an export.
func BodyEnricher(client api.Client) Enricher {
	return func(ctx context.Context, rec api.Record) api.Record {
		signedURL := rec.Str("signed_body_url")
		if signedURL == "" {
			return rec
		}

		payload := client.FetchSignedBody(ctx, signedURL)
		if payload.Empty() {
			return rec
		}

		if payload.Request != nil {
			rec["request_body"] = payload.Request
		}
		if payload.Response != nil {
			rec["response_body"] = payload.Response
		}
		return rec
	}
}
