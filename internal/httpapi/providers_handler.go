package httpapi

import (
	"net/http"
	"strings"

	"easyprompt/internal/actions"
	"easyprompt/internal/providers"
	"easyprompt/internal/utils"
)

// ProvidersHandler handles provider listing and health checks.
type ProvidersHandler struct {
	actions *actions.Actions
}

// NewProvidersHandler creates a new providers handler
func NewProvidersHandler(a *actions.Actions) *ProvidersHandler {
	return &ProvidersHandler{actions: a}
}

// List handles GET /providers. Anonymous callers see availability based on
// environment credentials only.
func (h *ProvidersHandler) List(w http.ResponseWriter, r *http.Request) {
	infos := h.actions.Providers(r.Context(), currentUserID(r))
	utils.RespondWithJSON(w, http.StatusOK, infos)
}

// Health handles GET /providers/{name}/health
func (h *ProvidersHandler) Health(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		// Fallback for callers hitting the route without a path value.
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) >= 2 {
			name = parts[1]
		}
	}

	health, err := h.actions.CheckHealth(r.Context(), providers.ProviderName(name), currentUserID(r))
	if err != nil {
		respondWithActionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, health)
}
