package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"easyprompt/internal/actions"
	"easyprompt/internal/middleware"
	"easyprompt/internal/providers"
	"easyprompt/internal/utils"
)

// PromptHandler handles the analyze, optimize, and compare endpoints.
type PromptHandler struct {
	actions *actions.Actions
}

// NewPromptHandler creates a new prompt handler
func NewPromptHandler(a *actions.Actions) *PromptHandler {
	return &PromptHandler{actions: a}
}

// AnalyzeRequest represents an analysis request
type AnalyzeRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// OptimizeRequest represents an optimization request
type OptimizeRequest struct {
	Prompt   string                    `json:"prompt"`
	Analysis *providers.AnalysisResult `json:"analysis,omitempty"`
	Provider string                    `json:"provider,omitempty"`
	Model    string                    `json:"model,omitempty"`
}

// CompareRequest represents a multi-provider comparison request
type CompareRequest struct {
	Prompt    string   `json:"prompt"`
	Providers []string `json:"providers"`
	Previews  bool     `json:"previews,omitempty"`
}

// currentUserID returns the authenticated user's ID, or nil for anonymous
// requests.
func currentUserID(r *http.Request) *uuid.UUID {
	if user := middleware.UserFromContext(r.Context()); user != nil {
		return &user.ID
	}
	return nil
}

// respondWithActionError maps action-layer errors onto HTTP statuses.
func respondWithActionError(w http.ResponseWriter, err error) {
	var invalidErr *actions.InvalidInputError
	if errors.As(err, &invalidErr) {
		utils.RespondWithError(w, http.StatusBadRequest, invalidErr.Message)
		return
	}

	var actionErr *actions.ActionError
	if errors.As(err, &actionErr) {
		status := http.StatusBadGateway
		var authErr *providers.AuthenticationError
		var rateErr *providers.RateLimitError
		var unavailErr *providers.UnavailableError
		switch {
		case errors.As(err, &authErr):
			status = http.StatusUnauthorized
		case errors.As(err, &rateErr):
			status = http.StatusTooManyRequests
		case errors.As(err, &unavailErr):
			status = http.StatusServiceUnavailable
		}
		utils.RespondWithError(w, status, actionErr.Message)
		return
	}

	utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
}

// Analyze handles POST /prompts/analyze
func (h *PromptHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Provider == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Provider is required")
		return
	}

	analysis, err := h.actions.Analyze(r.Context(), req.Prompt, providers.ProviderName(req.Provider), req.Model, currentUserID(r))
	if err != nil {
		respondWithActionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, analysis)
}

// Optimize handles POST /prompts/optimize
func (h *PromptHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := h.actions.Optimize(r.Context(), req.Prompt, req.Analysis, providers.ProviderName(req.Provider), req.Model, currentUserID(r))
	if err != nil {
		respondWithActionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

// Compare handles POST /prompts/compare
func (h *PromptHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	names := make([]providers.ProviderName, 0, len(req.Providers))
	for _, p := range req.Providers {
		names = append(names, providers.ProviderName(p))
	}

	userID := currentUserID(r)

	if req.Previews {
		results, err := h.actions.ComparePreviews(r.Context(), req.Prompt, names, userID)
		if err != nil {
			respondWithActionError(w, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, results)
		return
	}

	results, err := h.actions.Compare(r.Context(), req.Prompt, names, userID)
	if err != nil {
		respondWithActionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, results)
}
