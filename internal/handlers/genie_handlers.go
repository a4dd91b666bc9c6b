package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"nycdemo-backend/internal/databricks"
	"nycdemo-backend/internal/models"
	"nycdemo-backend/internal/services"
	"nycdemo-backend/pkg/httputil"
)

// GenieHandlers handles HTTP requests for the natural-language Q&A endpoint.
type GenieHandlers struct {
	genieService *services.GenieService
}

func NewGenieHandlers(genieService *services.GenieService) *GenieHandlers {
	return &GenieHandlers{genieService: genieService}
}

// HandleAsk handles POST /genie/ask. Upstream diagnostics stay in the server
// logs; clients only see the short messages below.
func (h *GenieHandlers) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "question is required (min 3 chars)")
		return
	}

	resp, err := h.genieService.Ask(r.Context(), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrQuestionTooShort):
			httputil.RespondError(w, http.StatusBadRequest, "question is required (min 3 chars)")
		case errors.Is(err, databricks.ErrCredentialUnavailable):
			log.Printf("ERROR [GenieHandlers] Ask: %v", err)
			httputil.RespondError(w, http.StatusServiceUnavailable, "Genie credentials unavailable")
		case errors.Is(err, databricks.ErrConversationStartFailed):
			httputil.RespondError(w, http.StatusBadGateway, "Failed to start Genie conversation")
		case errors.Is(err, services.ErrGenieTimeout):
			httputil.RespondError(w, http.StatusGatewayTimeout, "Genie query timed out")
		case errors.Is(err, services.ErrGenieFailed):
			httputil.RespondError(w, http.StatusBadGateway, "Genie query failed")
		default:
			log.Printf("ERROR [GenieHandlers] Ask: %v", err)
			httputil.RespondError(w, http.StatusInternalServerError, "Genie query failed")
		}
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}
