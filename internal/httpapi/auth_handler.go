package httpapi

import (
	"errors"
	"net/http"

	"easyprompt/internal/auth"
	"easyprompt/internal/middleware"
	"easyprompt/internal/models"
	"easyprompt/internal/utils"
)

// AuthHandler handles signup, login, logout, and the current-user lookup.
type AuthHandler struct {
	service *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// SignUpRequest represents a registration request
type SignUpRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// LogInRequest represents a login request
type LogInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries the session token and the user it belongs to
type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the sanitized user view
type UserResponse struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
}

func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
	}
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, token, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrEmailTaken):
			utils.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create account")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, SessionResponse{
		Token: token,
		User:  userResponse(user),
	})
}

// LogIn handles POST /auth/login
func (h *AuthHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	var req LogInRequest
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, token, err := h.service.LogIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, SessionResponse{
		Token: token,
		User:  userResponse(user),
	})
}

// LogOut handles POST /auth/logout
func (h *AuthHandler) LogOut(w http.ResponseWriter, r *http.Request) {
	token := ""
	if authHeader := r.Header.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	} else if cookie, err := r.Cookie("session_token"); err == nil {
		token = cookie.Value
	}

	if token != "" {
		if err := h.service.LogOut(r.Context(), token); err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to log out")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me. Requires RequireSession middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, userResponse(user))
}
