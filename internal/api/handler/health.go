package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/mcoot/gaminghub/internal/api/response"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a new health handler; store may be nil
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Get handles GET /api/v1/health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, response.HealthResponse{Status: "degraded"})
			return
		}
	}
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}
