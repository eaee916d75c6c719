// Package transport performs GET requests against the SGU API with a per-attempt
// timeout, bounded retry with exponential backoff and an optional rate limit.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultUserAgent    = "aquifer/1.0"

	acceptHeader  = "application/geo+json, application/json;q=0.9"
	maxLoggedBody = 512
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the transport settings.
type Config struct {
	BaseURL      string        // Base URL relative refs are resolved against
	Timeout      time.Duration // Per-attempt timeout
	MaxRetries   int           // Total attempts, values < 1 mean a single attempt
	RetryBackoff time.Duration // Initial backoff interval
	RateLimit    float64       // Requests per second, 0 for unlimited
	UserAgent    string
	Debug        bool // Log every attempt at debug level
}

// Client is safe for concurrent use. It keeps no per-call state.
type Client struct {
	http    HTTPClient
	base    *url.URL
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates a transport backed by a net/http client with cfg.Timeout.
func New(cfg Config, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithClient(&http.Client{Timeout: timeout}, cfg, log, m)
}

// NewWithClient creates a transport with a custom HTTP client.
// Useful for testing with mocked HTTP clients.
func NewWithClient(client HTTPClient, cfg Config, log *slog.Logger, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL %q: %w", errs.ErrInvalidArgument, cfg.BaseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("%w: base URL %q must be absolute", errs.ErrInvalidArgument, cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{http: client, base: base, cfg: cfg, limiter: limiter, log: log, metrics: m}, nil
}

// BaseURL returns a copy of the resolved base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Resolve turns ref into an absolute URL. Absolute refs are kept as-is;
// query values are merged into the ref's own query.
func (c *Client) Resolve(ref string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: reference %q: %w", errs.ErrInvalidArgument, ref, err)
	}
	if !u.IsAbs() {
		u = c.base.ResolveReference(u)
	}
	if len(query) > 0 {
		merged := u.Query()
		for key, vals := range query {
			merged[key] = vals
		}
		u.RawQuery = merged.Encode()
	}
	return u, nil
}

// Get fetches ref and returns the response body of the first successful attempt.
//
// Connection failures, timeouts and 5xx responses are retried up to MaxRetries
// attempts in total. Exhausted network failures return *errs.NetworkError,
// exhausted 5xx responses return the last *errs.APIError. 4xx is returned at once.
func (c *Client) Get(ctx context.Context, ref string, query url.Values) ([]byte, error) {
	target, err := c.Resolve(ref, query)
	if err != nil {
		return nil, err
	}
	endpoint := target.String()

	attempts := max(c.cfg.MaxRetries, 1)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryBackoff
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx) //nolint:gosec // attempts >= 1

	var (
		body    []byte
		attempt int
	)
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return backoff.Permanent(werr)
			}
		}
		data, aerr := c.attempt(ctx, endpoint, attempt)
		if aerr != nil {
			var apiErr *errs.APIError
			if errors.As(aerr, &apiErr) && !apiErr.Retryable() {
				return backoff.Permanent(aerr)
			}
			return aerr
		}
		body = data
		return nil
	}
	notify := func(nerr error, wait time.Duration) {
		c.metrics.Retries.Inc()
		c.log.WarnContext(ctx, "Retrying SGU request",
			"url", endpoint,
			"attempt", attempt,
			"max_attempts", attempts,
			"wait", wait,
			"error", nerr)
	}

	if err = backoff.RetryNotify(operation, retry, notify); err == nil {
		return body, nil
	}

	var apiErr *errs.APIError
	if errors.As(err, &apiErr) {
		return nil, apiErr
	}
	return nil, &errs.NetworkError{URL: endpoint, Attempts: attempt, Timeout: isTimeout(err), Err: err}
}

func (c *Client) attempt(ctx context.Context, endpoint string, attempt int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	if c.cfg.Debug {
		c.log.DebugContext(ctx, "SGU request", "method", req.Method, "url", endpoint, "attempt", attempt)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	c.metrics.RequestSeconds.Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeNetworkError).Inc()
		if c.cfg.Debug {
			c.log.DebugContext(ctx, "SGU request failed", "url", endpoint, "duration", elapsed, "error", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeNetworkError).Inc()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.cfg.Debug {
		c.log.DebugContext(ctx, "SGU response",
			"url", endpoint,
			"status", resp.StatusCode,
			"duration", elapsed,
			"bytes", len(body))
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		return body, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeServerError).Inc()
	default:
		c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeClientError).Inc()
	}

	if c.cfg.Debug {
		c.log.DebugContext(ctx, "SGU API error", "url", endpoint, "status", resp.StatusCode, "body", truncate(body))
	}
	return nil, &errs.APIError{
		URL:        endpoint,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		Body:       body,
	}
}

// errorMessage extracts the server's message from a JSON error document,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var doc map[string]any
	if json.Unmarshal(body, &doc) == nil {
		for _, key := range []string{"error", "description", "detail", "message", "title"} {
			if s, ok := doc[key].(string); ok && s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return truncate([]byte(msg))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return string(body[:maxLoggedBody]) + "..."
}
