package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	validator "github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coreb-invoice/internal/config"
	"github.com/noah-isme/coreb-invoice/internal/ratelimit"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	services := filepath.Join(dir, "services.csv")
	require.NoError(t, os.WriteFile(services, []byte("Service,Price\nRNA-seq,120\n"), 0o600))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lim, err := ratelimit.New("100-M", rdb)
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:                 "test",
		CatalogServicesPath:    services,
		CatalogNoUnitPricePath: filepath.Join(dir, "missing.csv"),
		ListDefaultPerPage:     10,
		ListMaxPerPage:         100,
		MaxFormBytes:           1 << 10,
		Obs:                    config.ObsConfig{MetricsEnabled: true, MetricsNamespace: "coreb_test"},
	}
	deps := &Dependencies{Redis: rdb, Validator: validator.New(), Limiter: lim, Logger: zerolog.Nop()}
	router, err := Build(cfg, deps)
	require.NoError(t, err)
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t)

	require.Equal(t, http.StatusOK, get(router, "/health/live").Code)

	rr := get(router, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), `"cache":"ok"`)
}

func TestRouterExportBeforeListing(t *testing.T) {
	rr := get(newTestRouter(t), "/api/v1/invoices/export")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "NOTHING_TO_EXPORT")
	require.Equal(t, "100", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterRejectsOversizedForms(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate", nil)
	req.ContentLength = 1 << 20
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t)
	_ = get(router, "/health/live")
	rr := get(router, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "coreb_test_http_requests_total")
	require.Contains(t, rr.Body.String(), `coreb_breaker_state{target="snapshot_redis"} 0`)
}
