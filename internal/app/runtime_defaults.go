package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charlesng35/snippets/pkg/crypto"
)

const (
	jwtSecretBytes         = 48
	defaultSnippetCacheTTL = 5 * time.Minute
	sqliteDirMode          = 0o750
)

// ApplyRuntimeDefaults fills what a bare deployment leaves empty and
// prepares the SQLite data directory. The returned keys name generated
// values so callers can log them without printing secrets.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.I18n.DefaultLocale) == "" {
		cfg.I18n.DefaultLocale = "en"
		generated["i18n.default_locale"] = true
	}

	if cfg.Snippets.CacheTTL <= 0 {
		cfg.Snippets.CacheTTL = defaultSnippetCacheTTL
		generated["snippets.cache_ttl"] = true
	}

	// keys are joined as prefix + key, so a bare prefix needs its separator
	if prefix := strings.TrimSpace(cfg.Cache.Redis.Prefix); prefix != "" && !strings.HasSuffix(prefix, ":") {
		cfg.Cache.Redis.Prefix = prefix + ":"
	}

	if err := ensureSQLiteDir(cfg.Database); err != nil {
		return nil, err
	}

	return generated, nil
}

func ensureSQLiteDir(db DatabaseConfig) error {
	if !strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite") || strings.TrimSpace(db.DSN) != "" {
		return nil
	}
	path := strings.TrimSpace(db.Path)
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, sqliteDirMode); err != nil {
		return fmt.Errorf("create sqlite directory %s: %w", dir, err)
	}
	return nil
}
