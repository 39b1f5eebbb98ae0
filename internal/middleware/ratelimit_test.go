package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyprompt/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/prompts/analyze", nil)
	req.RemoteAddr = "203.0.113.7:52801"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_EnforcesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	handler := RateLimit(ratelimit.NewRateLimiter(client), 2)(okHandler())

	rec := doRequest(t, handler)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = doRequest(t, handler)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_NoopLimiterNeverBlocks(t *testing.T) {
	handler := RateLimit(ratelimit.NewNoopLimiter(), 1)(okHandler())

	for i := 0; i < 10; i++ {
		rec := doRequest(t, handler)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_NilLimiterDisablesEnforcement(t *testing.T) {
	handler := RateLimit(nil, 1)(okHandler())

	for i := 0; i < 10; i++ {
		rec := doRequest(t, handler)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	handler := RateLimit(ratelimit.NewRateLimiter(client), 1)(okHandler())

	rec := doRequest(t, handler)
	assert.Equal(t, http.StatusOK, rec.Code)
}
