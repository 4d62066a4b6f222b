package api //nolint:revive // package name is intentional

import (
	"net/http"
)

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ai/complete", h.Complete)
	mux.HandleFunc("GET /v1/ai/metrics", h.Metrics)
	mux.HandleFunc("POST /v1/ai/metrics/reset", h.ResetMetrics)

	mux.HandleFunc("GET /health/live", h.HealthCheck)
	mux.HandleFunc("GET /health/ready", h.ReadyCheck)
}
