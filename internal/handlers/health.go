package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aisaas/backend/internal/logging"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.DB.Ping(pingCtx); err != nil {
			logging.FromContext(ctx).Error("database health check failed", "error", err)
			respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": "unreachable",
			})
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
