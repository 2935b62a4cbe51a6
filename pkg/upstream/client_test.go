package upstream

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/internal/testutil"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig(baseURL)
	cfg.Timeout = 2 * time.Second
	cfg.Retry = fastRetry()
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://localhost:3000", false},
		{"https with path", "https://api.example.com/v1", false},
		{"missing", "", true},
		{"no scheme", "localhost:3000", true},
		{"unsupported scheme", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(DefaultConfig(tt.baseURL), zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestForwardGet(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/api/products", testutil.NewJSONResponse(`{"success":true,"data":[]}`))

	c := newTestClient(t, mock.URL())

	req := httptest.NewRequest(http.MethodGet, "/api/products?page=2", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.Forward(context.Background(), req)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"success":true,"data":[]}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if resp.Header.Get("Content-Length") != "" {
		t.Error("Content-Length should be stripped")
	}
	if got := mock.GetLastRequestHeader().Get("Authorization"); got != "Bearer token" {
		t.Errorf("forwarded Authorization = %q", got)
	}
}

func TestForwardKeepsQueryAndBasePath(t *testing.T) {
	var gotURI atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI.Store(r.URL.RequestURI())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/v1/")

	if _, err := c.Get(context.Background(), "/api/orders?status=pending&limit=5"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if uri := gotURI.Load(); uri != "/v1/api/orders?status=pending&limit=5" {
		t.Errorf("upstream saw %v, want /v1/api/orders?status=pending&limit=5", uri)
	}
}

func TestForwardUserAgent(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	cfg := DefaultConfig(mock.URL())
	cfg.UserAgent = "api-cache/1.0"
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(context.Background(), "/api/x"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := mock.GetLastRequestHeader().Get("User-Agent"); got != "api-cache/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestForwardClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/api/missing", testutil.NewNotFoundResponse())

	c := newTestClient(t, mock.URL())

	resp, err := c.Get(context.Background(), "/api/missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
	if n := mock.GetPathCount("/api/missing"); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestForwardServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetHandler("/api/flaky", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"success":true}`))
	})

	c := newTestClient(t, mock.URL())

	resp, err := c.Get(context.Background(), "/api/flaky")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("upstream calls = %d, want 3", calls.Load())
	}
}

func TestForwardServerErrorExhaustedReturnsResponse(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/api/down", testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL())

	resp, err := c.Get(context.Background(), "/api/down")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(string(resp.Body), "Internal server error") {
		t.Errorf("Body = %q, want upstream body", resp.Body)
	}
	if n := mock.GetPathCount("/api/down"); n != 3 {
		t.Errorf("upstream calls = %d, want 3", n)
	}
}

func TestForwardWritesNotRetried(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/api/orders", testutil.NewServerErrorResponse())

	c := newTestClient(t, mock.URL())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"qty":1}`))
	resp, err := c.Forward(context.Background(), req)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
	if n := mock.GetPathCount("/api/orders"); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestForwardSendsBody(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		got.Store(buf.String())
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	req := httptest.NewRequest(http.MethodPut, "/api/orders/1", strings.NewReader(`{"qty":2}`))
	resp, err := c.Forward(context.Background(), req)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if got.Load() != `{"qty":2}` {
		t.Errorf("upstream body = %v", got.Load())
	}
}

func TestForwardNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newTestClient(t, url)

	_, err := c.Get(context.Background(), "/api/x")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Get() error = %v, want ErrRetryExhausted", err)
	}

	var upErr *Error
	if !errors.As(err, &upErr) || upErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("expected network-class upstream error, got %v", err)
	}
}

func TestForwardTimeout(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/api/slow", testutil.NewSlowResponse(`{}`, 300*time.Millisecond))

	cfg := DefaultConfig(mock.URL())
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry = fastRetry()
	cfg.Retry.MaxAttempts = 1
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(context.Background(), "/api/slow"); err == nil {
		t.Fatal("expected timeout error")
	}
}
