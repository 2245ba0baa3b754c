package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/loupelabs/loupe/pkg/filter"
	"github.com/loupelabs/loupe/pkg/logger"
)

// Regional base endpoints for the direct backend.
var regionEndpoints = map[string]string{
	"us": "https://api.us.loupe.dev",
	"eu": "https://api.eu.loupe.dev",
}

// DefaultTimeout bounds each individual HTTP call. The pagination engine
// adds no timeouts of its own.
const DefaultTimeout = 60 * time.Second

// DirectClient talks straight to the analytics service. It supports the
// full query contract including session endpoints.
type DirectClient struct {
	transport   *transport
	sampleLimit int
}

// NewDirectClient builds a client against the named region ("us" or "eu").
func NewDirectClient(region, apiKey string, sampleLimit int) (*DirectClient, error) {
	base, ok := regionEndpoints[region]
	if !ok {
		return nil, fmt.Errorf("unknown region %q (use us or eu)", region)
	}
	return &DirectClient{
		transport:   newTransport(base, apiKey, DefaultTimeout),
		sampleLimit: sampleLimit,
	}, nil
}

func (c *DirectClient) QueryRequests(ctx context.Context, p QueryParams) ([]Record, error) {
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/v1/request/query", p.normalized())
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := decodeEnvelope(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *DirectClient) CountRequests(ctx context.Context, f filter.Node) (int, error) {
	if f == nil {
		f = filter.All{}
	}
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/v1/request/count", map[string]any{"filter": f})
	if err != nil {
		return 0, err
	}
	var count int
	if err := decodeEnvelope(body, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *DirectClient) GetRequest(ctx context.Context, id string, includeBody bool) (Record, error) {
	path := "/v1/request/" + url.PathEscape(id)
	if includeBody {
		path += "?includeBody=true"
	}
	body, err := c.transport.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := decodeEnvelope(body, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *DirectClient) FetchSignedBody(ctx context.Context, signedURL string) BodyPayload {
	return fetchSignedBody(ctx, c.transport.httpClient, signedURL)
}

func (c *DirectClient) QuerySessions(ctx context.Context, p QueryParams) ([]Record, error) {
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/v1/session/query", p.normalized())
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := decodeEnvelope(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *DirectClient) CountSessions(ctx context.Context, f filter.Node) (int, error) {
	if f == nil {
		f = filter.All{}
	}
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/v1/session/count", map[string]any{"filter": f})
	if err != nil {
		return 0, err
	}
	var count int
	if err := decodeEnvelope(body, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *DirectClient) QueryUserMetrics(ctx context.Context, p QueryParams) ([]UserMetric, error) {
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/v1/user/metrics/query", p.normalized())
	if err != nil {
		return nil, err
	}
	var metrics []UserMetric
	if err := decodeEnvelope(body, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

func (c *DirectClient) SampleLimit() int {
	return c.sampleLimit
}

// fetchSignedBody retrieves an externally-hosted body payload. Signed URLs
// carry their own authorization, so no bearer header is sent. Failures of
// any kind degrade to an empty payload; enrichment is never load-bearing.
func fetchSignedBody(ctx context.Context, client *http.Client, signedURL string) BodyPayload {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return BodyPayload{}
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("signed body fetch failed: %v", err)
		return BodyPayload{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("signed body fetch returned HTTP %d", resp.StatusCode)
		return BodyPayload{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BodyPayload{}
	}

	var payload BodyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Debug("signed body parse failed: %v", err)
		return BodyPayload{}
	}
	return payload
}
