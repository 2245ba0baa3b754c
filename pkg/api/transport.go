package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/loupelabs/loupe/pkg/logger"
)

const (
	maxAttempts  = 5
	baseBackoff  = 500 * time.Millisecond
	maxRetryWait = 30 * time.Second
)

// transport is the shared HTTP layer under both backends: bearer auth, JSON
// bodies, zstd response decoding, and exponential backoff with jitter on
// transient failures. Rate-limit responses honor the server's Retry-After.
type transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	decoder    *zstd.Decoder
}

func newTransport(baseURL, apiKey string, timeout time.Duration) *transport {
	decoder, _ := zstd.NewReader(nil)

	return &transport{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		decoder: decoder,
	}
}

// doJSON performs one logical request, retrying transient failures. The
// returned bytes are the decompressed response body of the first
// non-retryable attempt.
func (t *transport) doJSON(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := retryBackoff(attempt)
			logger.Debug("retrying %s %s in %v (attempt %d/%d): %v", method, path, wait, attempt+1, maxAttempts, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retryAfter, err := t.once(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if retryAfter < 0 {
			// Non-retryable: client errors and malformed responses.
			return nil, err
		}
		if retryAfter > 0 {
			// Rate limited; sleep what the server asked before the
			// backoff loop comes around again.
			if retryAfter > maxRetryWait {
				retryAfter = maxRetryWait
			}
			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

// once performs a single HTTP attempt. The second return value signals retry
// policy: -1 means do not retry, 0 means retryable, >0 means retryable after
// that server-requested delay.
func (t *transport) once(ctx context.Context, method, path string, payload []byte) ([]byte, time.Duration, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bodyReader)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Accept-Encoding", "zstd")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.Header.Get("Content-Encoding") == "zstd" {
		body, err = t.decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, -1, fmt.Errorf("failed to decompress response: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, wait, fmt.Errorf("rate limited (HTTP 429)")
	case resp.StatusCode >= 500:
		return nil, 0, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, truncate(body, 200))
	case resp.StatusCode != http.StatusOK:
		return nil, -1, fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, truncate(body, 200))
	}

	return body, -1, nil
}

func retryBackoff(attempt int) time.Duration {
	// 500ms, 1s, 2s, 4s ... plus up to 50% jitter.
	backoff := baseBackoff * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
	return backoff + jitter
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// envelope is the {data, error} shape every backend response is expected to
// carry. Responses without it are treated as a bare successful payload.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
}

// decodeEnvelope unwraps a {data, error} response into out. An error field
// set by the server becomes an ordinary error value here.
func decodeEnvelope(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error != nil && *env.Error != "" {
			return fmt.Errorf("backend error: %s", *env.Error)
		}
		if env.Data != nil {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("failed to parse response data: %w", err)
			}
			return nil
		}
	}

	// No envelope: bare payload.
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
