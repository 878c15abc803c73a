package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) int {
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res.Code
}

func TestRateLimiterIsolatesGroups(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"execute": {RequestsPerMinute: 1, Burst: 1},
		"read":    {RequestsPerMinute: 600, Burst: 5},
	}, nil)
	execute := limiter.Middleware("execute")(okHandler())
	read := limiter.Middleware("read")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/contracts/x/execute", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	require.Equal(t, http.StatusOK, serve(execute, req))
	require.Equal(t, http.StatusTooManyRequests, serve(execute, req))

	readReq := httptest.NewRequest(http.MethodGet, "/bank/x", nil)
	readReq.Header.Set("X-Real-IP", "10.0.0.1")
	require.Equal(t, http.StatusOK, serve(read, readReq))
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{"execute": {RequestsPerMinute: 1, Burst: 1}}, nil)
	handler := limiter.Middleware("execute")(okHandler())

	a := httptest.NewRequest(http.MethodPost, "/", nil)
	a.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.2")
	b := httptest.NewRequest(http.MethodPost, "/", nil)
	b.Header.Set("X-Forwarded-For", "192.0.2.2")

	require.Equal(t, http.StatusOK, serve(handler, a))
	require.Equal(t, http.StatusOK, serve(handler, b))
	require.Equal(t, http.StatusTooManyRequests, serve(handler, a))
}

func TestRateLimiterPassesUnconfiguredGroups(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	handler := limiter.Middleware("anything")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, serve(handler, req))
	}
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(map[string]RateLimit{"read": {RequestsPerMinute: 60, Burst: 1}}, nil)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("read")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	require.Equal(t, http.StatusOK, serve(handler, req))
	require.Equal(t, 1, limiter.Visitors())

	now = now.Add(idleVisitorTTL + time.Second)
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "198.51.100.8:5555"
	require.Equal(t, http.StatusOK, serve(handler, other))
	require.Equal(t, 1, limiter.Visitors())
}

func TestClientIDFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	require.Equal(t, "203.0.113.9", clientID(req))
}
