package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingValues(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.Equal(t, "en", cfg.I18n.DefaultLocale)
	require.Equal(t, defaultSnippetCacheTTL, cfg.Snippets.CacheTTL)
	require.Equal(t, map[string]bool{
		"auth.jwt.secret":     true,
		"i18n.default_locale": true,
		"snippets.cache_ttl":  true,
	}, generated)
}

func TestApplyRuntimeDefaultsPreservesExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)
	cfg.I18n.DefaultLocale = "fr"
	cfg.Snippets.CacheTTL = time.Minute
	cfg.Cache.Redis.Prefix = "mantis:"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, strings.Repeat("a", 10), cfg.Auth.JWT.Secret)
	require.Equal(t, time.Minute, cfg.Snippets.CacheTTL)
	require.Equal(t, "mantis:", cfg.Cache.Redis.Prefix)
}

func TestApplyRuntimeDefaultsAddsPrefixSeparator(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.Redis.Prefix = " tracker "

	_, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Equal(t, "tracker:", cfg.Cache.Redis.Prefix)
}

func TestApplyRuntimeDefaultsCreatesSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "nested")
	cfg := &Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(dir, "snippets.sqlite")

	_, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	cfg.Database.Path = ":memory:"
	_, err = ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "config is nil")
}
