package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"easyprompt/internal/credentials"
	"easyprompt/internal/middleware"
	"easyprompt/internal/providers"
	"easyprompt/internal/utils"
)

// ProviderConfigsHandler handles per-user provider credential management.
// Every endpoint requires an authenticated session.
type ProviderConfigsHandler struct {
	service *credentials.Service
}

// NewProviderConfigsHandler creates a new provider configs handler
func NewProviderConfigsHandler(service *credentials.Service) *ProviderConfigsHandler {
	return &ProviderConfigsHandler{service: service}
}

// SaveConfigRequest represents a create-or-update request for one provider.
// Omitted fields keep their stored values.
type SaveConfigRequest struct {
	Provider    string  `json:"provider"`
	DisplayName *string `json:"display_name,omitempty"`
	APIKey      *string `json:"api_key,omitempty"`
	Endpoint    *string `json:"endpoint,omitempty"`
}

// ToggleConfigRequest represents an enable/disable request
type ToggleConfigRequest struct {
	Enabled bool `json:"enabled"`
}

// List handles GET /provider-configs
func (h *ProviderConfigsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	summaries, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list provider configurations")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summaries)
}

// Save handles POST /provider-configs
func (h *ProviderConfigsHandler) Save(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SaveConfigRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Provider == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Provider is required")
		return
	}

	summary, err := h.service.Save(r.Context(), user.ID, providers.ProviderName(req.Provider), credentials.SaveInput{
		DisplayName: req.DisplayName,
		APIKey:      req.APIKey,
		Endpoint:    req.Endpoint,
	})
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrUnsupportedProvider), errors.Is(err, credentials.ErrNothingToSave):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save provider configuration")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// configID extracts the {id} path value as a UUID.
func configID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Toggle handles PATCH /provider-configs/{id}
func (h *ProviderConfigsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := configID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid configuration ID")
		return
	}

	var req ToggleConfigRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	summary, err := h.service.SetEnabled(r.Context(), user.ID, id, req.Enabled)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update provider configuration")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// Delete handles DELETE /provider-configs/{id}
func (h *ProviderConfigsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := configID(r)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid configuration ID")
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete provider configuration")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
