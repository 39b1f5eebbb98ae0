package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"easyprompt/internal/ratelimit"
	"easyprompt/internal/utils"
)

// RateLimit enforces a per-caller request limit on the wrapped handler.
// Authenticated callers are keyed by user ID, anonymous callers by client
// IP. A nil limiter disables enforcement.
func RateLimit(limiter ratelimit.Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			allowed, remaining, resetAt, err := limiter.AllowWithDetails(r.Context(), key, limit)
			if err != nil {
				// Redis being down must not take the API down with it.
				next.ServeHTTP(w, r)
				return
			}

			if remaining >= 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			}

			if !allowed {
				retryAfter := int(time.Until(resetAt).Seconds())
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded - try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if user := UserFromContext(r.Context()); user != nil {
		return fmt.Sprintf("user:%s", user.ID)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ip:%s", host)
}
