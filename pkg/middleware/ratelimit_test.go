package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	// Other keys have their own bucket.
	assert.True(t, rl.Allow("other"))
}

func TestRateLimiterRemaining(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	assert.Equal(t, 5, rl.Remaining("k"))
	rl.Allow("k")
	assert.Equal(t, 4, rl.Remaining("k"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Millisecond,
		BurstSize:         0,
	})

	rl.Allow("stale")
	time.Sleep(5 * time.Millisecond)
	rl.Cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Empty(t, rl.buckets)
}

func TestRateLimitMiddleware(t *testing.T) {
	m := &RateLimitMiddleware{
		userLimiter: NewRateLimiter(PerUserRateLimitConfig()),
		anonymousLimiter: NewRateLimiter(&RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
			BurstSize:         0,
		}),
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := m.Handler(ok)

	req := httptest.NewRequest("GET", "/collections", nil)
	req.RemoteAddr = "10.1.2.3:4444"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3")
	assert.Equal(t, "10.0.0.3", getClientIP(req))
}
