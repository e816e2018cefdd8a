package core

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/config"
)

// recordingMetrics captures RecordRequest calls.
type recordingMetrics struct {
	method   string
	endpoint string
	status   string
	calls    int
}

func (m *recordingMetrics) RecordRequest(method, endpoint, status string, _ time.Duration) {
	m.method = method
	m.endpoint = endpoint
	m.status = status
	m.calls++
}

func newMiddlewareTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	s := newMiddlewareTestServer(t)

	handler := s.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
}

func TestSecurityHeadersMiddleware_PresentOnErrors(t *testing.T) {
	s := newMiddlewareTestServer(t)

	handler := s.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	s := newMiddlewareTestServer(t)
	metrics := &recordingMetrics{}
	s.Metrics = metrics

	r := chi.NewRouter()
	r.Use(s.MetricsMiddleware)
	r.Get("/api/creations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/creations/3f2b1c90", nil))

	require.Equal(t, 1, metrics.calls)
	assert.Equal(t, http.MethodGet, metrics.method)
	assert.Equal(t, "/api/creations/{id}", metrics.endpoint,
		"endpoint dimension must be the route pattern, not the raw path")
	assert.Equal(t, "200", metrics.status)
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	s := newMiddlewareTestServer(t)

	handler := s.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
