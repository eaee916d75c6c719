package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/UnknownOlympus/aquifer/internal/errs"
	"github.com/UnknownOlympus/aquifer/internal/metrics"
	"github.com/UnknownOlympus/aquifer/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient is a mock implementation of HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newClient(t *testing.T, doer transport.HTTPClient, mutate ...func(*transport.Config)) (*transport.Client, *metrics.Metrics) {
	t.Helper()

	cfg := transport.Config{
		BaseURL:      "https://api.sgu.se/oppnadata",
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	client, err := transport.NewWithClient(doer, cfg, slog.Default(), m)
	require.NoError(t, err)
	return client, m
}

func TestClient_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("successful request", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Equal(t,
					"/oppnadata/grundvattennivaer-observerade/ogc/features/v1/collections/stationer/items",
					req.URL.Path)
				assert.Equal(t, "10", req.URL.Query().Get("limit"))
				assert.Equal(t, transport.DefaultUserAgent, req.Header.Get("User-Agent"))
				assert.Contains(t, req.Header.Get("Accept"), "application/geo+json")
				return respond(http.StatusOK, `{"type":"FeatureCollection","features":[]}`), nil
			},
		}
		client, m := newClient(t, mockClient)

		body, err := client.Get(ctx,
			"grundvattennivaer-observerade/ogc/features/v1/collections/stationer/items",
			url.Values{"limit": {"10"}})

		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(body))
		assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(metrics.OutcomeSuccess)), 0)
	})

	t.Run("absolute reference is used verbatim", func(t *testing.T) {
		next := "https://api.sgu.se/oppnadata/x/items?offset=100&limit=100"
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, next, req.URL.String())
				return respond(http.StatusOK, `{}`), nil
			},
		}
		client, _ := newClient(t, mockClient)

		_, err := client.Get(ctx, next, nil)

		require.NoError(t, err)
	})

	t.Run("two timeouts then success", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				if calls < 3 {
					return nil, &url.Error{Op: "Get", URL: "x", Err: timeoutError{}}
				}
				return respond(http.StatusOK, `{"ok":true}`), nil
			},
		}
		client, m := newClient(t, mockClient)

		body, err := client.Get(ctx, "items", nil)

		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(body))
		assert.Equal(t, 3, calls)
		assert.InDelta(t, 2, testutil.ToFloat64(m.Retries), 0)
	})

	t.Run("three timeouts exhaust the attempts", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return nil, &url.Error{Op: "Get", URL: "x", Err: timeoutError{}}
			},
		}
		client, _ := newClient(t, mockClient)

		body, err := client.Get(ctx, "items", nil)

		require.Error(t, err)
		assert.Nil(t, body)
		assert.Equal(t, 3, calls)

		var netErr *errs.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 3, netErr.Attempts)
		assert.True(t, netErr.Timeout)
		assert.ErrorIs(t, err, errs.ErrNetwork)
		assert.NotErrorIs(t, err, errs.ErrAPI)
	})

	t.Run("connection refused is not a timeout", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
		}
		client, _ := newClient(t, mockClient)

		_, err := client.Get(ctx, "items", nil)

		var netErr *errs.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.False(t, netErr.Timeout)
		assert.Contains(t, err.Error(), "connection failed after 3 attempt(s)")
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return respond(http.StatusBadRequest, `{"description":"Invalid filter expression"}`), nil
			},
		}
		client, m := newClient(t, mockClient)

		_, err := client.Get(ctx, "items", url.Values{"filter": {"bad ="}})

		require.Error(t, err)
		assert.Equal(t, 1, calls)

		var apiErr *errs.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "Invalid filter expression", apiErr.Message)
		assert.InDelta(t, 0, testutil.ToFloat64(m.Retries), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(metrics.OutcomeClientError)), 0)
	})

	t.Run("5xx is retried then reported", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return respond(http.StatusServiceUnavailable, "upstream unavailable"), nil
			},
		}
		client, _ := newClient(t, mockClient)

		_, err := client.Get(ctx, "items", nil)

		assert.Equal(t, 3, calls)
		var apiErr *errs.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, "upstream unavailable", apiErr.Message)
		assert.NotErrorIs(t, err, errs.ErrNetwork)
	})

	t.Run("5xx then success", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				if calls == 1 {
					return respond(http.StatusBadGateway, ""), nil
				}
				return respond(http.StatusOK, `{}`), nil
			},
		}
		client, _ := newClient(t, mockClient)

		_, err := client.Get(ctx, "items", nil)

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("zero retries means one attempt", func(t *testing.T) {
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				return nil, timeoutError{}
			},
		}
		client, _ := newClient(t, mockClient, func(c *transport.Config) { c.MaxRetries = 0 })

		_, err := client.Get(ctx, "items", nil)

		var netErr *errs.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, netErr.Attempts)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				calls++
				cancel()
				return nil, context.Canceled
			},
		}
		client, _ := newClient(t, mockClient, func(c *transport.Config) { c.MaxRetries = 5 })

		_, err := client.Get(cctx, "items", nil)

		require.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, errs.ErrNetwork)
		assert.Equal(t, 1, calls)
	})
}

func TestClient_DebugTrace(t *testing.T) {
	ok := &mockHTTPClient{
		doFunc: func(_ *http.Request) (*http.Response, error) {
			return respond(http.StatusOK, `{}`), nil
		},
	}

	for _, debug := range []bool{true, false} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		client, err := transport.NewWithClient(ok, transport.Config{
			BaseURL: "https://api.sgu.se/oppnadata/",
			Debug:   debug,
		}, logger, nil)
		require.NoError(t, err)

		_, err = client.Get(context.Background(), "items", nil)
		require.NoError(t, err)

		if debug {
			assert.Contains(t, buf.String(), "SGU request")
			assert.Contains(t, buf.String(), "status=200")
		} else {
			assert.Empty(t, buf.String())
		}
	}
}

func TestNewWithClient_InvalidBaseURL(t *testing.T) {
	_, err := transport.NewWithClient(&mockHTTPClient{}, transport.Config{BaseURL: "api.sgu.se"}, nil, nil)

	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestClient_Resolve(t *testing.T) {
	client, err := transport.NewWithClient(&mockHTTPClient{}, transport.Config{
		BaseURL: "https://api.sgu.se/oppnadata",
	}, nil, nil)
	require.NoError(t, err)

	u, err := client.Resolve("a/collections/b/items?f=json", url.Values{"limit": {"5"}})

	require.NoError(t, err)
	assert.Equal(t, "https://api.sgu.se/oppnadata/a/collections/b/items?f=json&limit=5", u.String())
}
