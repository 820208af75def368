package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient()

		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want 3", c.maxRetries)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		c := NewClient(
			WithTimeout(5*time.Second),
			WithRetries(1, 10*time.Millisecond),
			WithHeader("X-Session-Id", "abc"),
		)
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", c.httpClient.Timeout)
		}
		if c.maxRetries != 1 || c.retryBackoff != 10*time.Millisecond {
			t.Errorf("retries = %d/%v, want 1/10ms", c.maxRetries, c.retryBackoff)
		}
		if got := c.header.Get("X-Session-Id"); got != "abc" {
			t.Errorf("header = %q, want abc", got)
		}
	})
}

func TestDiscover(t *testing.T) {
	var gotTier, gotSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTier = r.URL.Query().Get("tier")
		gotSession = r.Header.Get("X-Session-Id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"services":[
			{"endpoint":"a.example.com/stream","port":443,"transport":"websocket","dataFormat":["json"],"location":"amer-east","tier":[1,3]},
			{"endpoint":"b.example.com","port":14002,"transport":"tcp","dataFormat":["json"],"location":"emea"}
		]}`))
	}))
	defer server.Close()

	var outcomes []string
	c := NewClient(
		WithHeader("X-Session-Id", "sess-1"),
		WithObserver(func(o string) { outcomes = append(outcomes, o) }),
	)

	resp, err := c.Discover(context.Background(), server.URL+"/streaming/pricing", url.Values{"tier": {"2"}})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if gotTier != "2" {
		t.Errorf("tier param = %q, want 2", gotTier)
	}
	if gotSession != "sess-1" {
		t.Errorf("session header = %q, want sess-1", gotSession)
	}
	if len(resp.Services) != 2 {
		t.Fatalf("services = %d, want 2", len(resp.Services))
	}
	if resp.Services[0].Endpoint != "a.example.com/stream" || resp.Services[0].Port != 443 {
		t.Errorf("service[0] = %+v", resp.Services[0])
	}
	min, max, ok := resp.Services[0].TierRange()
	if !ok || min != 1 || max != 3 {
		t.Errorf("TierRange = %d,%d,%v, want 1,3,true", min, max, ok)
	}
	if _, _, ok := resp.Services[1].TierRange(); ok {
		t.Error("service without tier should report ok=false")
	}
	if len(outcomes) != 1 || outcomes[0] != "ok" {
		t.Errorf("outcomes = %v, want [ok]", outcomes)
	}
}

func TestDiscover_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"services":[]}`))
	}))
	defer server.Close()

	c := NewClient(WithRetries(3, time.Millisecond))

	resp, err := c.Discover(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(resp.Services) != 0 {
		t.Errorf("services = %d, want 0", len(resp.Services))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestDiscover_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(WithRetries(3, time.Millisecond))

	_, err := c.Discover(context.Background(), server.URL, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("404 should not be retryable")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDiscover_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var outcome string
	c := NewClient(WithObserver(func(o string) { outcome = o }))
	if _, err := c.Discover(context.Background(), server.URL, nil); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if outcome != "error" {
		t.Errorf("outcome = %q, want error", outcome)
	}
}

func TestDiscover_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(WithRetries(5, time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Discover(ctx, server.URL, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
