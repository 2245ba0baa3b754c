package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestDoJSONSendsBearerAndDecodesEnvelope(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data": [{"request_id": "r1"}], "error": null}`))
	}))
	defer server.Close()

	tr := newTransport(server.URL, "test-key-0123456789", time.Second)
	body, err := tr.doJSON(context.Background(), http.MethodPost, "/query", map[string]any{"filter": "all"})
	if err != nil {
		t.Fatalf("doJSON: %v", err)
	}
	if gotAuth != "Bearer test-key-0123456789" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	var records []Record
	if err := decodeEnvelope(body, &records); err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if len(records) != 1 || records[0].Str("request_id") != "r1" {
		t.Errorf("records = %v", records)
	}
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data": 42, "error": null}`))
	}))
	defer server.Close()

	tr := newTransport(server.URL, "k", time.Second)
	body, err := tr.doJSON(context.Background(), http.MethodPost, "/count", nil)
	if err != nil {
		t.Fatalf("doJSON after retry: %v", err)
	}

	var count int
	if err := decodeEnvelope(body, &count); err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestDoJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad filter", http.StatusBadRequest)
	}))
	defer server.Close()

	tr := newTransport(server.URL, "k", time.Second)
	if _, err := tr.doJSON(context.Background(), http.MethodPost, "/query", nil); err == nil {
		t.Fatal("doJSON succeeded on 400")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry)", calls.Load())
	}
}

func TestDoJSONDecompressesZstd(t *testing.T) {
	payload := []byte(`{"data": {"request_id": "r9"}, "error": null}`)
	encoder, _ := zstd.NewWriter(nil)
	compressed := encoder.EncodeAll(payload, nil)
	encoder.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
			t.Error("request missing zstd Accept-Encoding")
		}
		w.Header().Set("Content-Encoding", "zstd")
		w.Write(compressed)
	}))
	defer server.Close()

	tr := newTransport(server.URL, "k", time.Second)
	body, err := tr.doJSON(context.Background(), http.MethodGet, "/request/r9", nil)
	if err != nil {
		t.Fatalf("doJSON: %v", err)
	}

	var rec Record
	if err := decodeEnvelope(body, &rec); err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if rec.Str("request_id") != "r9" {
		t.Errorf("record = %v", rec)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("server error becomes error value", func(t *testing.T) {
		var out []Record
		err := decodeEnvelope([]byte(`{"data": null, "error": "unauthorized org"}`), &out)
		if err == nil || !strings.Contains(err.Error(), "unauthorized org") {
			t.Errorf("err = %v, want backend error surfaced", err)
		}
	})

	t.Run("bare payload without envelope", func(t *testing.T) {
		var out []Record
		if err := decodeEnvelope([]byte(`[{"request_id": "r1"}]`), &out); err != nil {
			t.Fatalf("decodeEnvelope: %v", err)
		}
		if len(out) != 1 {
			t.Errorf("out = %v", out)
		}
	})

	t.Run("null data yields zero value", func(t *testing.T) {
		var count int
		if err := decodeEnvelope([]byte(`{"data": null}`), &count); err != nil {
			t.Fatalf("decodeEnvelope: %v", err)
		}
		if count != 0 {
			t.Errorf("count = %d", count)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v", got)
	}
	if got := parseRetryAfter(""); got != time.Second {
		t.Errorf("parseRetryAfter(empty) = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != time.Second {
		t.Errorf("parseRetryAfter(garbage) = %v", got)
	}
}

func TestFetchSignedBodyBestEffort(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Error("signed URL fetch must not carry bearer auth")
			}
			w.Write([]byte(`{"request": {"prompt": "hi"}, "response": {"text": "hello"}}`))
		}))
		defer server.Close()

		payload := fetchSignedBody(context.Background(), http.DefaultClient, server.URL)
		if payload.Empty() {
			t.Error("payload empty on success")
		}
	})

	t.Run("http error degrades to empty", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer server.Close()

		if payload := fetchSignedBody(context.Background(), http.DefaultClient, server.URL); !payload.Empty() {
			t.Error("payload not empty on 404")
		}
	})

	t.Run("parse error degrades to empty", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		if payload := fetchSignedBody(context.Background(), http.DefaultClient, server.URL); !payload.Empty() {
			t.Error("payload not empty on parse failure")
		}
	})

	t.Run("network error degrades to empty", func(t *testing.T) {
		if payload := fetchSignedBody(context.Background(), http.DefaultClient, "http://127.0.0.1:1"); !payload.Empty() {
			t.Error("payload not empty on connection failure")
		}
	})
}

func TestGatewaySessionsUnsupported(t *testing.T) {
	client, err := NewGatewayClient("https://gw.internal", "k", 200)
	if err != nil {
		t.Fatalf("NewGatewayClient: %v", err)
	}

	if _, err := client.QuerySessions(context.Background(), QueryParams{}); err == nil {
		t.Error("QuerySessions succeeded on gateway")
	} else if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("err = %v, want unsupported", err)
	}
	if _, err := client.CountSessions(context.Background(), nil); err == nil {
		t.Error("CountSessions succeeded on gateway")
	}
}

func TestQueryParamsNormalized(t *testing.T) {
	p := QueryParams{Limit: 5000}
	n := p.normalized()
	if n.Limit != MaxPageSize {
		t.Errorf("limit = %d, want clamped to %d", n.Limit, MaxPageSize)
	}
	if n.Filter == nil {
		t.Error("nil filter not replaced with All")
	}
}
