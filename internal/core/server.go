// Package core provides the API chassis for the QuickAI platform: a chi
// router with the cross-cutting middleware chain (recovery, timeouts, request
// IDs, logging, compression, CORS, metrics, authentication) applied before
// requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quickai/internal/config"
)

// Server encapsulates all chassis dependencies, allowing for easy injection
// during testing and distinct configuration for different environments.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator

	// RouteRegistrars are called by MountRoutes to attach domain handler
	// routes under /api. Populated by the application entry point; the
	// indirection avoids import cycles between core and handler packages.
	RouteRegistrars []func(chi.Router)

	// HealthCheck reports readiness of the backing store; nil skips the
	// check.
	HealthCheck func(ctx context.Context) error

	router *chi.Mux
}

// NewServer initializes the chassis and prepares the router for route
// mounting. The caller is responsible for mounting routes (via MountRoutes)
// after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
