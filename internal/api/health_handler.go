package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/reigh-app/reigh-api/internal/api/shared"
)

// Pinger is anything whose reachability the health check reports, such as
// the database pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	pinger Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. pinger may be nil.
func NewHealthHandler(pinger Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		pinger: pinger,
		logger: logger.With(slog.String("component", "health_handler")),
	}
}

// ServeHTTP reports 200 when the service and its backing store are reachable.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.PingContext(ctx); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
