package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/app"
	"github.com/charlesng35/snippets/internal/cache"
	testutil "github.com/charlesng35/snippets/internal/database/testutil"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/internal/monitoring/checks"
)

func testConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Enabled: true, Requests: 3, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "router-test-secret", Issuer: "test", TTL: 15 * time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func newTestRouter(t *testing.T, cfg *app.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewServices(db, cfg, cache.NewDatabaseStore(db))
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, time.Second))

	router, err := NewRouter(svc, RouterOptions{
		Config:    cfg,
		Health:    health,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.Enabled = false
	router := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health/ready").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/setup/status").Code)

	for _, path := range []string{
		"/api/auth/me",
		"/api/users",
		"/api/snippets",
		"/api/plugins/snippets/data",
		"/api/plugins/snippets/config",
	} {
		rec := serve(router, http.MethodGet, path)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"), path)
	}

	unknown := serve(router, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, unknown.Code)
	require.Contains(t, unknown.Body.String(), "NOT_FOUND")
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.Enabled = false
	router := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "snippets_api_latency_seconds"))
}

func TestRouter_HealthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.Enabled = false
	cfg.Monitoring.Health.Enabled = false
	router := newTestRouter(t, cfg)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := serve(router, http.MethodGet, path)
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		require.Contains(t, rec.Body.String(), "health checks are disabled", path)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	router := newTestRouter(t, testConfig())

	for i := 0; i < 3; i++ {
		rec := serve(router, http.MethodGet, "/api/setup/status")
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
	limited := serve(router, http.MethodGet, "/api/setup/status")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.NotEmpty(t, limited.Header().Get("Retry-After"))
}

func TestNewRouterRequiresServices(t *testing.T) {
	_, err := NewRouter(nil, RouterOptions{Config: testConfig()})
	require.Error(t, err)
}
