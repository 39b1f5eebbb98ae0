package middleware

import (
	"context"
	"net/http"
	"strings"

	"easyprompt/internal/auth"
	"easyprompt/internal/models"
	"easyprompt/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// UserKey is the context key for the authenticated user
	UserKey ContextKey = "user"
)

// sessionCookieName is the fallback transport for browser clients that
// cannot set an Authorization header.
const sessionCookieName = "session_token"

// extractToken pulls the session token from the Authorization header or the
// session cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		return cookie.Value
	}
	return ""
}

// RequireSession rejects requests without a valid session and adds the user
// to the request context.
func RequireSession(service *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			user, err := service.CurrentUser(r.Context(), token)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession adds the user to the request context when a valid session
// is presented, and passes anonymous requests through untouched. Used by
// endpoints that work without an account but prefer per-user credentials
// when available.
func OptionalSession(service *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token != "" {
				if user, err := service.CurrentUser(r.Context(), token); err == nil {
					ctx := context.WithValue(r.Context(), UserKey, user)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserKey).(*models.User)
	return user
}
