package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/auth/providers"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/services"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.False(t, cfg.Server.RateLimit.Enabled)
	require.Equal(t, 50, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6543, cfg.Database.Postgres.Port)
	require.Equal(t, "require", cfg.Database.Postgres.Options["sslmode"])

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)
	require.EqualValues(t, 10, cfg.Cache.Breaker.MinRequests)
	require.InDelta(t, 0.25, cfg.Cache.Breaker.FailureRatio, 0.0001)
	require.Equal(t, 30*time.Second, cfg.Cache.Breaker.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 1440*time.Hour, cfg.Auth.Session.RefreshTTL)
	require.Equal(t, 64, cfg.Auth.Session.RefreshLength)
	require.Equal(t, 7, cfg.Auth.Local.LockoutThreshold)
	require.Equal(t, 20*time.Minute, cfg.Auth.Local.LockoutDuration)

	require.Equal(t, "manager", cfg.Snippets.EditGlobalThreshold)
	require.Equal(t, []string{"bugnote_text", "additional_information"}, cfg.Snippets.TextareaNames)
	require.Equal(t, 2*time.Minute, cfg.Snippets.CacheTTL)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 6h", cfg.Maintenance.OrphanSchedule)
	require.Equal(t, "@hourly", cfg.Maintenance.SessionSchedule)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, "de", cfg.I18n.DefaultLocale)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/snippets.sqlite", cfg.Database.Path)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "administrator", cfg.Snippets.EditGlobalThreshold)
	require.Equal(t, []string{"bugnote_text"}, cfg.Snippets.TextareaNames)
	require.Equal(t, "en", cfg.I18n.DefaultLocale)
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("SNIPPETS_SERVER_PORT", "7070")
	t.Setenv("SNIPPETS_SNIPPETS_EDIT_OWN_THRESHOLD", "developer")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "developer", cfg.Snippets.EditOwnThreshold)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{
			JWT: JWTSettings{
				Secret:          "secret",
				PreviousSecrets: []string{" old ", "", "secret"},
				Issuer:          "issuer",
				TTL:             30 * time.Minute,
				Leeway:          5 * time.Minute,
			},
			Session: SessionSettings{
				RefreshTTL:    10 * time.Hour,
				RefreshLength: 32,
			},
			Local: LocalAuthSettings{
				LockoutThreshold: 4,
				LockoutDuration:  10 * time.Minute,
			},
		},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:          "secret",
		PreviousSecrets: []string{"old"},
		Issuer:          "issuer",
		AccessTokenTTL:  30 * time.Minute,
		Leeway:          maxJWTLeeway,
	}, cfg.Auth.JWTServiceConfig())

	require.Equal(t, auth.SessionConfig{
		RefreshTokenTTL: 10 * time.Hour,
		RefreshLength:   32,
	}, cfg.Auth.SessionServiceConfig())

	require.Equal(t, providers.LocalConfig{
		LockoutThreshold: 4,
		LockoutDuration:  10 * time.Minute,
	}, cfg.Auth.LocalProviderConfig())
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	require.Equal(t, auth.DefaultAccessTokenTTL, cfg.JWTServiceConfig().AccessTokenTTL)

	require.Equal(t, defaultJWTIssuer, cfg.JWTServiceConfig().Issuer)

	sessionCfg := cfg.SessionServiceConfig()
	require.Equal(t, auth.DefaultRefreshTokenTTL, sessionCfg.RefreshTokenTTL)
	require.Equal(t, defaultRefreshLength, sessionCfg.RefreshLength)

	localCfg := cfg.LocalProviderConfig()
	require.Equal(t, defaultLockoutThreshold, localCfg.LockoutThreshold)
	require.Equal(t, defaultLockoutDuration, localCfg.LockoutDuration)
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "MySQL",
		MySQL: DBAuthConfig{
			Host:     "db",
			Port:     3307,
			Database: "snippets",
			Username: "app",
			Password: "pw",
			Options:  map[string]string{"tls": "true"},
		},
		MaxOpenConns: 8,
	}

	conn := cfg.ConnectionConfig()
	require.Equal(t, "mysql", conn.Driver)
	require.Equal(t, "db", conn.Host)
	require.Equal(t, 3307, conn.Port)
	require.Equal(t, "snippets", conn.Name)
	require.Equal(t, "app", conn.User)
	require.Equal(t, "pw", conn.Password)
	require.Equal(t, "true", conn.Options["tls"])
	require.Equal(t, 8, conn.MaxOpenConns)

	sqlite := DatabaseConfig{Path: "/tmp/x.sqlite"}.ConnectionConfig()
	require.Equal(t, "sqlite", sqlite.Driver)
	require.Equal(t, "/tmp/x.sqlite", sqlite.Path)
	require.Empty(t, sqlite.Host)
}

func TestCacheConfigAdapters(t *testing.T) {
	cfg := CacheConfig{
		Redis: RedisCacheConfig{Address: " redis:6379 ", DB: 3, Prefix: "p:"},
		Breaker: BreakerConfig{
			MaxRequests:  2,
			Interval:     time.Second,
			Timeout:      time.Minute,
			MinRequests:  4,
			FailureRatio: 0.75,
		},
	}

	redisCfg := cfg.RedisClientConfig()
	require.Equal(t, "redis:6379", redisCfg.Address)
	require.Equal(t, 3, redisCfg.DB)
	require.Equal(t, "p:", redisCfg.Prefix)

	breaker := cfg.BreakerSettings()
	require.Equal(t, "redis", breaker.Name)
	require.EqualValues(t, 2, breaker.MaxRequests)
	require.EqualValues(t, 4, breaker.MinRequests)
	require.Equal(t, time.Minute, breaker.Timeout)
}

func TestSnippetSettingsAdapter(t *testing.T) {
	settings, err := SnippetsConfig{
		EditGlobalThreshold: "manager",
		UseGlobalThreshold:  "10",
		TextareaNames:       []string{" bugnote_text ", "", "bugnote_text", "description"},
	}.SnippetSettings()
	require.NoError(t, err)

	require.Equal(t, models.AccessManager, settings.EditGlobalThreshold)
	require.Equal(t, models.AccessViewer, settings.UseGlobalThreshold)
	require.Equal(t, services.DefaultSnippetSettings().EditOwnThreshold, settings.EditOwnThreshold)
	require.Equal(t, []string{"bugnote_text", "description"}, settings.TextareaNames)

	_, err = SnippetsConfig{EditOwnThreshold: "wizard"}.SnippetSettings()
	require.Error(t, err)
	require.Contains(t, err.Error(), "snippets.edit_own_threshold")
}

func TestAuthConfigClampsTokenSettings(t *testing.T) {
	cfg := AuthConfig{
		JWT:     JWTSettings{TTL: 48 * time.Hour},
		Session: SessionSettings{RefreshTTL: 12 * time.Hour, RefreshLength: 8},
	}

	require.Equal(t, 12*time.Hour, cfg.JWTServiceConfig().AccessTokenTTL)
	require.Equal(t, minRefreshLength, cfg.SessionServiceConfig().RefreshLength)
}
