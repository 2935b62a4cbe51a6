// Package upstream provides the HTTP client and proxy handler for the
// data-serving API that sits behind the cache, with retries, error
// classification, and metrics.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_upstream_requests_total",
		Help: "Total upstream requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apicache_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apicache_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream API, e.g. "http://localhost:3000"
	BaseURL string

	// Timeout bounds one attempt
	Timeout time.Duration

	// UserAgent is sent on every request when set
	UserAgent string

	// Retry governs retries of idempotent requests
	Retry RetryConfig
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Response is an upstream response read fully into memory.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client forwards requests to the upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Forward sends in to the upstream API under the same path and query.
//
// GET, HEAD and OPTIONS are retried on network errors and 5xx. When retries
// run out on a 5xx the last upstream response is returned as is, so the
// caller can relay it. Network failures return an error.
func (c *Client) Forward(ctx context.Context, in *http.Request) (*Response, error) {
	var body []byte
	if in.Body != nil && in.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(in.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	target := c.targetURL(in.URL)

	retry := c.config.Retry
	if !idempotent(in.Method) {
		retry.MaxAttempts = 1
	}

	var resp *Response
	err := retryWithBackoff(ctx, retry, c.logger, func() (ErrorClass, error) {
		req, err := http.NewRequestWithContext(ctx, in.Method, target, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		copyHeaders(req.Header, in.Header)
		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		r, err := c.do(req)
		if err != nil {
			errClass := classify(0, err)
			upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()
			return errClass, &Error{ErrorClass: errClass, Message: "request failed", Err: err}
		}
		resp = r

		errClass := classify(r.StatusCode, nil)
		if errClass == "" {
			return "", nil
		}
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Debug().
			Str("path", in.URL.Path).
			Int("status", r.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream error response")

		if !shouldRetry(errClass) {
			return errClass, nil
		}
		return errClass, &Error{
			StatusCode: r.StatusCode,
			ErrorClass: errClass,
			Message:    http.StatusText(r.StatusCode),
		}
	})
	if err != nil {
		var upErr *Error
		if errors.As(err, &upErr) && upErr.ErrorClass == ErrorClassServer && resp != nil && ctx.Err() == nil {
			return resp, nil
		}
		c.logger.Error().Err(err).Str("path", in.URL.Path).Str("method", in.Method).Msg("Upstream request failed")
		return nil, err
	}

	return resp, nil
}

// do performs one request and reads the whole body.
func (c *Client) do(req *http.Request) (*Response, error) {
	start := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(start).Seconds())
	}()

	r, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, err
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}
	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()

	header := r.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")

	return &Response{
		StatusCode: r.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}

// Get performs a GET request to path on the upstream API.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Forward(ctx, req)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) targetURL(in *url.URL) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + in.Path
	u.RawPath = ""
	u.RawQuery = in.RawQuery
	u.Fragment = ""
	return u.String()
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	dst.Del("Content-Length")
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
