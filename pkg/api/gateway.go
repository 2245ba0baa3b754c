package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/loupelabs/loupe/pkg/filter"
)

// GatewayClient routes queries through an intermediary gateway instead of
// the service itself. The gateway exposes the request and user-metrics
// endpoints only; session operations report ErrUnsupported.
type GatewayClient struct {
	transport   *transport
	sampleLimit int
}

// NewGatewayClient builds a client against a configured gateway base URL.
func NewGatewayClient(baseURL, apiKey string, sampleLimit int) (*GatewayClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway URL not configured (run 'loupe configure --gateway-url ...')")
	}
	return &GatewayClient{
		transport:   newTransport(strings.TrimRight(baseURL, "/"), apiKey, DefaultTimeout),
		sampleLimit: sampleLimit,
	}, nil
}

func (c *GatewayClient) QueryRequests(ctx context.Context, p QueryParams) ([]Record, error) {
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/analytics/request/query", p.normalized())
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := decodeEnvelope(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *GatewayClient) CountRequests(ctx context.Context, f filter.Node) (int, error) {
	if f == nil {
		f = filter.All{}
	}
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/analytics/request/count", map[string]any{"filter": f})
	if err != nil {
		return 0, err
	}
	var count int
	if err := decodeEnvelope(body, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *GatewayClient) GetRequest(ctx context.Context, id string, includeBody bool) (Record, error) {
	path := "/analytics/request/" + url.PathEscape(id)
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

func (c *GatewayClient) FetchSignedBody(ctx context.Context, signedURL string) BodyPayload {
	return fetchSignedBody(ctx, c.transport.httpClient, signedURL)
}

// QuerySessions is not available through the gateway.
func (c *GatewayClient) QuerySessions(ctx context.Context, p QueryParams) ([]Record, error) {
	return nil, fmt.Errorf("%w: session queries require direct mode", ErrUnsupported)
}

// CountSessions is not available through the gateway.
func (c *GatewayClient) CountSessions(ctx context.Context, f filter.Node) (int, error) {
	return 0, fmt.Errorf("%w: session counts require direct mode", ErrUnsupported)
}

func (c *GatewayClient) QueryUserMetrics(ctx context.Context, p QueryParams) ([]UserMetric, error) {
	body, err := c.transport.doJSON(ctx, http.MethodPost, "/analytics/user/metrics", p.normalized())
	if err != nil {
		return nil, err
	}
	var metrics []UserMetric
	if err := decodeEnvelope(body, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

func (c *GatewayClient) SampleLimit() int {
	return c.sampleLimit
}
