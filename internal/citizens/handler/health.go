package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"census/pkg/platform/httputil"
)

const healthTimeout = 2 * time.Second

// Pinger is implemented by every import store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the configured store answers.
type Health struct {
	store   Pinger
	backend string
	logger  *slog.Logger
}

func NewHealth(store Pinger, backend string, logger *slog.Logger) *Health {
	return &Health{store: store, backend: backend, logger: logger}
}

type healthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// ServeHTTP handles GET /health.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed", "store", h.backend, "error", err)
		httputil.WriteData(w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Store: h.backend})
		return
	}
	httputil.WriteData(w, http.StatusOK, healthStatus{Status: "ok", Store: h.backend})
}
