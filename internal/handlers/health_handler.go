package handlers

import (
	"net/http"

	"nycdemo-backend/internal/models"
	"nycdemo-backend/internal/store"
	"nycdemo-backend/pkg/httputil"
)

// HealthHandler reports database connectivity.
type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(store store.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		httputil.RespondJSON(w, http.StatusServiceUnavailable, models.HealthResponse{Status: "error", DB: "disconnected"})
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", DB: "connected"})
}
