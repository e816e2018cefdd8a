package core

import (
	"net/http"
	"time"
)

// healthResponse is the payload for GET /health.
type healthResponse struct {
	Status   string            `json:"status"`
	Time     string            `json:"time"`
	Features map[string]bool   `json:"features"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// HandleHealth reports process liveness, which optional capabilities are
// configured, and (when a HealthCheck is wired) whether the backing store is
// reachable. A failing store check degrades status to "degraded" with a 503
// so load balancers stop routing, but the process keeps running: requests
// that don't touch the store may still succeed.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	f := s.Config.Features()

	resp := healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Features: map[string]bool{
			"auth":             f.Auth,
			"text_generation":  f.TextGeneration,
			"image_generation": f.ImageGeneration,
			"image_editing":    f.ImageEditing,
			"media_storage":    f.MediaStorage,
			"billing":          f.Billing,
			"metrics":          f.Metrics,
		},
	}

	status := http.StatusOK
	if s.HealthCheck != nil {
		if err := s.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Checks = map[string]string{"database": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks = map[string]string{"database": "ok"}
		}
	}

	JSON(w, r, status, resp)
}
