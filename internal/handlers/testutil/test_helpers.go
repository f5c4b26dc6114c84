package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/api"
	"github.com/charlesng35/snippets/internal/app"
	"github.com/charlesng35/snippets/internal/cache"
	sharedtestutil "github.com/charlesng35/snippets/internal/database/testutil"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/internal/monitoring/checks"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/response"
)

// DefaultPassword is the password every user created by the helpers carries.
const DefaultPassword = "SuperSecret123!"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Config   *app.Config
	Services *api.Services
	Router   *gin.Engine
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())
	cfg := TestConfig()

	svc, err := api.NewServices(db, cfg, cache.NewDatabaseStore(db))
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, time.Second))

	router, err := api.NewRouter(svc, api.RouterOptions{
		Config:    cfg,
		Health:    health,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Config:   cfg,
		Services: svc,
		Router:   router,
	}
}

// TestConfig returns a configuration suitable for in-process API tests.
func TestConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Enabled: false},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{
				RefreshTTL:    24 * time.Hour,
				RefreshLength: 48,
			},
		},
		Snippets: app.SnippetsConfig{
			CacheTTL: time.Minute,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		I18n: app.I18nConfig{DefaultLocale: "en"},
	}
}

// CreateUser inserts an active user with the given access level and DefaultPassword.
func (e *Env) CreateUser(level models.AccessLevel) *models.User {
	e.T.Helper()

	username := "user-" + uuid.NewString()[:8]
	user, err := e.Services.Users.Create(context.Background(), services.CreateUserInput{
		Username:    username,
		Email:       username + "@example.com",
		Password:    DefaultPassword,
		AccessLevel: &level,
	})
	require.NoError(e.T, err)
	return user
}

// CreateRootUser inserts an active root user with DefaultPassword.
func (e *Env) CreateRootUser() *models.User {
	e.T.Helper()

	username := "root-" + uuid.NewString()[:8]
	user, err := e.Services.Users.Create(context.Background(), services.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: DefaultPassword,
		IsRoot:   true,
	})
	require.NoError(e.T, err)
	return user
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID          string             `json:"id"`
	Username    string             `json:"username"`
	Email       string             `json:"email"`
	RealName    string             `json:"real_name"`
	AccessLevel models.AccessLevel `json:"access_level"`
	IsRoot      bool               `json:"is_root"`
	IsActive    bool               `json:"is_active"`
	Permissions []string           `json:"permissions"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         UserPayload `json:"user"`
}

// Login authenticates using the local provider and returns the issued token pair.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"identifier": username,
		"password":   password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	require.Greater(e.T, result.ExpiresIn, 0)
	require.Equal(e.T, username, result.User.Username)

	return result
}

// Token logs the user in and returns only the access token.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	return e.Login(user.Username, DefaultPassword).AccessToken
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
