package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"nycdemo-backend/internal/models"
	"nycdemo-backend/internal/services"
	"nycdemo-backend/pkg/httputil"
)

// RegistrationHandlers handles HTTP requests related to event registrations.
type RegistrationHandlers struct {
	registrationService *services.RegistrationService
}

func NewRegistrationHandlers(registrationService *services.RegistrationService) *RegistrationHandlers {
	return &RegistrationHandlers{registrationService: registrationService}
}

// HandleCreateRegistration handles POST /registrations.
func (h *RegistrationHandlers) HandleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.UserID == "" || req.LocationType == "" || req.Reason == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user_id, location_type, and reason are required")
		return
	}

	created, err := h.registrationService.CreateRegistration(r.Context(), req)
	if err != nil {
		log.Printf("ERROR [RegistrationHandlers] Create: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to save registration")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, created)
}

// HandleListRegistrations handles GET /registrations.
func (h *RegistrationHandlers) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrationService.ListRegistrations(r.Context())
	if err != nil {
		log.Printf("ERROR [RegistrationHandlers] List: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to fetch registrations")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, regs)
}

// HandleGetStats handles GET /registrations/stats.
func (h *RegistrationHandlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registrationService.GetStats(r.Context())
	if err != nil {
		log.Printf("ERROR [RegistrationHandlers] Stats: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, stats)
}

// HandleListTopics handles GET /topics.
func (h *RegistrationHandlers) HandleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.registrationService.ListTopics(r.Context())
	if err != nil {
		log.Printf("ERROR [RegistrationHandlers] Topics: %v", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to fetch topics")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, topics)
}
