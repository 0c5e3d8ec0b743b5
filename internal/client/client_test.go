// SPDX-License-Identifier: MIT

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ratewait/internal/api"
	"github.com/ManuGH/ratewait/internal/config"
	"github.com/ManuGH/ratewait/internal/ratelimit"
	"github.com/ManuGH/ratewait/internal/testutil"
)

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "v9.9.9"
	cfg.Limits.PerClient = config.RateConfig{Rate: 1, Burst: 1}
	cfg.Guard = config.GuardConfig{}

	clock := testutil.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := api.New(cfg, ratelimit.NewMemoryStore(), api.WithClock(clock))
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_AcquireAgainstServer(t *testing.T) {
	ts := newAPIServer(t)
	c := New(Config{BaseURL: ts.URL + "/", Timeout: 5 * time.Second})
	ctx := context.Background()

	res, err := c.Acquire(ctx, AcquireRequest{Key: "svc/a b"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, "svc/a b", res.Key)

	_, err = c.Acquire(ctx, AcquireRequest{Key: "svc/a b"})
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, time.Second, rl.RetryAfter)
	assert.Equal(t, ratelimit.TierClient, rl.Limiter)

	res, err = c.Acquire(ctx, AcquireRequest{Key: "svc/a b", Wait: true, Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = c.Acquire(ctx, AcquireRequest{Key: "other", Cells: 5})
	require.ErrorIs(t, err, ErrInsufficientCapacity)

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "v9.9.9", h.Version)
}

func TestClient_AcquireWithoutKeyUsesCallerAddress(t *testing.T) {
	ts := newAPIServer(t)
	c := New(Config{BaseURL: ts.URL})

	res, err := c.Acquire(context.Background(), AcquireRequest{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", res.Key)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "retry after header only",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			check: func(t *testing.T, err error) {
				var rl *RateLimitedError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 7*time.Second, rl.RetryAfter)
			},
		},
		{
			name: "json api error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_, _ = w.Write([]byte(`{"error":"wait_deadline","detail":"too long"}`))
			},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusGatewayTimeout, apiErr.StatusCode)
				assert.Equal(t, "wait_deadline", apiErr.Code)
				assert.Equal(t, "http 504: wait_deadline: too long", apiErr.Error())
			},
		},
		{
			name: "plain text error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "boom", apiErr.Detail)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := New(Config{BaseURL: ts.URL}).Acquire(context.Background(), AcquireRequest{Key: "k"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	ts := newAPIServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{BaseURL: ts.URL}).Acquire(ctx, AcquireRequest{Key: "k"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
