package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func serve(h http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	return rr
}

func TestMiddlewareEnforcesLimitInMemory(t *testing.T) {
	l, err := New("1-M", nil)
	require.NoError(t, err)
	h := Handler{Limiter: l, Key: ByClientIP(false)}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h).Code)
	rr := serve(h)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Contains(t, rr.Body.String(), "RATE_LIMITED")
}

func TestMiddlewareEnforcesLimitInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := New("2-M", client)
	require.NoError(t, err)
	h := Handler{Limiter: l, Key: func(*http.Request) string { return "static" }}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h).Code)
	require.Equal(t, http.StatusOK, serve(h).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h).Code)
}

func TestMiddlewareProceedsOnStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := New("1-M", client)
	require.NoError(t, err)
	mr.Close()

	called := false
	h := Handler{
		Limiter: l,
		Key:     func(*http.Request) string { return "err" },
		OnError: func(error) { called = true },
	}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h).Code)
	require.True(t, called)
}

func TestNewRejectsBadRate(t *testing.T) {
	_, err := New("lots", nil)
	require.Error(t, err)
}
