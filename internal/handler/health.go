package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and readiness. Readiness requires the
// database; the notifier is reported but never fails the check.
type HealthHandler struct {
	db       pinger
	notifier pinger
}

func NewHealthHandler(db pinger, notifier pinger) *HealthHandler {
	return &HealthHandler{db: db, notifier: notifier}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.notifier != nil {
		checks["notifier"] = "ok"
		if err := h.notifier.PingContext(ctx); err != nil {
			slog.Warn("notifier unreachable", "error", err)
			checks["notifier"] = "degraded"
		}
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
