package handlers

import (
	"log"
	"net/http"

	"nycdemo-backend/internal/models"
	"nycdemo-backend/internal/services"
	"nycdemo-backend/pkg/httputil"
)

// DashboardHandlers handles the embed-token endpoint for the BI dashboard.
type DashboardHandlers struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandlers(dashboardService *services.DashboardService) *DashboardHandlers {
	return &DashboardHandlers{dashboardService: dashboardService}
}

// HandleDashboardToken handles GET /dashboard-token. Any failure in the
// embed-token chain collapses to a 503; the chain's diagnostics go to logs.
func (h *DashboardHandlers) HandleDashboardToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.dashboardService.EmbedToken(r.Context())
	if err != nil {
		log.Printf("ERROR [DashboardHandlers] Embed token: %v", err)
		httputil.RespondError(w, http.StatusServiceUnavailable, "Dashboard token unavailable")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.DashboardTokenResponse{Token: token})
}
