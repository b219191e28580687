package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	now := time.Now()

	remaining, _, allowed := rl.allow("a", now)
	require.True(t, allowed)
	assert.Equal(t, 1, remaining)

	remaining, _, allowed = rl.allow("a", now)
	require.True(t, allowed)
	assert.Equal(t, 0, remaining)

	_, _, allowed = rl.allow("a", now)
	assert.False(t, allowed)

	// Another client has its own budget.
	_, _, allowed = rl.allow("b", now)
	assert.True(t, allowed)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	_, _, allowed := rl.allow("a", now)
	require.True(t, allowed)
	_, _, allowed = rl.allow("a", now)
	require.False(t, allowed)

	_, _, allowed = rl.allow("a", now.Add(time.Minute))
	assert.True(t, allowed)
}

func TestRateLimiter_EvictStale(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	rl.allow("a", now)
	rl.evictStale(now.Add(3 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestRateLimit_Middleware(t *testing.T) {
	mw := RateLimit(t.Context(), RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(*http.Request) string {
			return "test"
		},
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := mw(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "x-forwarded-for single",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4"},
			remote:  "9.9.9.9:1234",
			want:    "1.2.3.4",
		},
		{
			name:    "x-forwarded-for list",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			remote:  "9.9.9.9:1234",
			want:    "1.2.3.4",
		},
		{
			name:    "x-real-ip",
			headers: map[string]string{"X-Real-IP": "5.6.7.8"},
			remote:  "9.9.9.9:1234",
			want:    "5.6.7.8",
		},
		{
			name:   "remote addr",
			remote: "9.9.9.9:1234",
			want:   "9.9.9.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}
