// Package api provides the HTTP surface of the AI orchestration layer:
// completions, the analytics/insights metrics payload, and health probes.
package api //nolint:revive // package name is intentional

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/tripmux"
	"github.com/blueberrycongee/tripmux/internal/httputil"
	"github.com/blueberrycongee/tripmux/internal/observability"
)

// readyTimeout bounds the backend ping of the readiness probe.
const readyTimeout = 2 * time.Second

// Handler serves the HTTP API on top of a tripmux.Client.
type Handler struct {
	client      *tripmux.Client
	logger      *slog.Logger
	redactor    *observability.Redactor
	maxBodySize int64
	recentLimit int
}

// HandlerConfig contains optional configuration for Handler.
type HandlerConfig struct {
	MaxBodySize     int64                   // Maximum request body size in bytes
	RecentLogsLimit int                     // Default number of recent logs in the metrics payload
	Redactor        *observability.Redactor // Applied to upstream error messages
}

// NewHandler creates a handler for client.
func NewHandler(client *tripmux.Client, logger *slog.Logger, cfg *HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		client:      client,
		logger:      logger,
		redactor:    observability.NewRedactor(),
		maxBodySize: DefaultMaxBodySize,
		recentLimit: tripmux.DefaultRecentLogsLimit,
	}
	if cfg != nil {
		if cfg.MaxBodySize > 0 {
			h.maxBodySize = cfg.MaxBodySize
		}
		if cfg.RecentLogsLimit > 0 {
			h.recentLimit = min(cfg.RecentLogsLimit, MaxRecentLogsLimit)
		}
		if cfg.Redactor != nil {
			h.redactor = cfg.Redactor
		}
	}
	return h
}

// completeRequest is the wire form of tripmux.Request. The TTL travels in
// milliseconds.
type completeRequest struct {
	tripmux.Request
	CacheTTLMs int64 `json:"cacheTtlMs,omitempty"`
}

// Complete handles POST /v1/ai/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	body, err := httputil.ReadLimitedBody(r.Body, h.maxBodySize)
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		h.writeError(w, invalidRequest("request body too large"))
		return
	}
	if err != nil {
		h.writeError(w, invalidRequest("failed to read request body"))
		return
	}

	var in completeRequest
	if err := json.Unmarshal(body, &in); err != nil {
		h.writeError(w, invalidRequest("invalid JSON: "+err.Error()))
		return
	}
	if in.CacheTTLMs < 0 {
		h.writeError(w, invalidRequest("cacheTtlMs must not be negative"))
		return
	}
	req := in.Request
	req.CacheTTL = time.Duration(in.CacheTTLMs) * time.Millisecond

	logger := observability.WithRequestID(r.Context(), h.logger)
	resp, err := h.client.Complete(r.Context(), &req)
	if err != nil {
		logger.Warn("completion failed", "operation", req.Operation, "error", h.redactor.Redact(err.Error()))
		h.writeError(w, err)
		return
	}

	logger.Debug("completion served",
		"operation", req.Operation,
		"cached", resp.Cached,
		"attempts", resp.Attempts,
		"duration_ms", resp.DurationMs,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /v1/ai/metrics. The optional limit query parameter
// bounds the number of recent logs returned.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	limit := h.recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, invalidRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, MaxRecentLogsLimit)
	}
	h.writeJSON(w, http.StatusOK, h.client.Snapshot(limit))
}

// ResetMetrics handles POST /v1/ai/metrics/reset.
func (h *Handler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.client.ResetAnalytics()
	observability.WithRequestID(r.Context(), h.logger).Info("analytics reset via API")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HealthCheck handles GET /health/live.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck handles GET /health/ready. It fails while the cache backend is
// unreachable or the client is shut down.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.client.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  h.redactor.Redact(err.Error()),
		})
		return
	}

	stats := h.client.QueueStats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"queueLength":    stats.QueueLength,
		"activeRequests": stats.ActiveRequests,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
