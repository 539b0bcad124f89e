package handler

import (
	"context"
	"net/http"

	"github.com/outfitly/outfitly/internal/api/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns the handler for GET /api/v1/health.
func NewHealthHandler(db Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok", "cache": "ok"}
		degraded := false

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
			degraded = true
		}
		if err := cache.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
			degraded = true
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable,
				"DEGRADED", "One or more services degraded", checks)
			return
		}
		response.JSON(w, map[string]string{"status": "ok"})
	}
}
