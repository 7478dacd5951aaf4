package handler

import (
	"encoding/json"
	"net/http"

	"github.com/insightql/insightql/internal/agent"
	"github.com/insightql/insightql/internal/models"
)

// AskHandler handles POST /api/v1/ask
type AskHandler struct {
	ask *agent.AskHandler
}

func NewAskHandler(ask *agent.AskHandler) *AskHandler {
	return &AskHandler{ask: ask}
}

// Ask handles POST /api/v1/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.ask == nil {
		models.WriteError(w, http.StatusServiceUnavailable, "agent is not configured: set the Anthropic API key")
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()

	if req.Question == "" {
		models.WriteError(w, http.StatusBadRequest, "question is required")
		return
	}

	apiKey := r.Header.Get("X-API-Key")

	resp, err := h.ask.Handle(r.Context(), &req, apiKey)
	if err != nil {
		// Validation and policy failures come back with a partial response
		// carrying the rejection context; surface it as a 400.
		if resp != nil {
			models.WriteJSON(w, http.StatusBadRequest, resp)
			return
		}
		models.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	models.WriteJSON(w, http.StatusOK, resp)
}
