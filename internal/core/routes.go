package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"quickai/internal/types"
)

// MountRoutes attaches the global middleware chain and all registered domain
// routes to the router. Call exactly once, after every handler package has
// appended its registrar to RouteRegistrars.
//
// Middleware order matters: recovery wraps everything so a panic anywhere in
// the chain becomes a 500; the context timeout bounds the whole request;
// request IDs must exist before the logger runs; authentication runs last so
// every rejection is already logged and measured.
func (s *Server) MountRoutes() {
	r := s.router

	r.Use(s.Recoverer)
	r.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	r.Use(RequestIDMiddleware)
	r.Use(s.SecurityHeadersMiddleware)
	r.Use(CompressMiddleware)
	r.Use(RequestLogger(s.Logger))
	r.Use(NewCORSMiddleware(s.Config.Server.CorsAllowedOrigins))
	if s.Metrics != nil {
		r.Use(s.MetricsMiddleware)
	}
	r.Use(s.AuthMiddleware)

	r.Get("/health", s.HandleHealth)

	r.Route("/api", func(api chi.Router) {
		for _, register := range s.RouteRegistrars {
			register(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundRoute,
			"The requested resource does not exist",
			nil,
		))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeNotFoundRoute),
				Message:   "Method not allowed for this resource",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
	})
}
