package external

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/types"
)

func newTestBaseClient(policy RetryPolicy) *BaseClient {
	c := NewBaseClient(http.DefaultClient, "test", policy)
	c.sleepFn = func(time.Duration) {}
	return c
}

func errorCodeOf(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestBaseClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "QuickAI/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestBaseClient(DefaultRetryPolicy())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBaseClient_RetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestBaseClient(RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestBaseClient_DoesNotRetryPosts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestBaseClient(DefaultRetryPolicy())
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a failed POST must not be replayed")
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, errorCodeOf(t, err))
}

func TestBaseClient_MapsRateLimiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestBaseClient(DefaultRetryPolicy())
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, errorCodeOf(t, err))
}

func TestBaseClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestBaseClient(RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond})

	// Feed failures until the breaker trips, then verify the next request is
	// rejected without touching the server.
	for i := 0; i < 6; i++ {
		req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
		_, err := c.Do(req)
		require.Error(t, err)
	}
	served := calls.Load()

	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, errorCodeOf(t, err))
	assert.Equal(t, served, calls.Load(), "open breaker must short-circuit the request")
}

func TestBaseClient_ConnectionRefused(t *testing.T) {
	c := newTestBaseClient(DefaultRetryPolicy())
	req, _ := http.NewRequest(http.MethodPost, "http://127.0.0.1:1", nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, errorCodeOf(t, err))
}
