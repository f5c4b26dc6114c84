package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var sqliteFileDefaults = map[string]string{
	"_foreign_keys": "1",
	"_journal_mode": "WAL",
	"_busy_timeout": "5000",
	"_txlock":       "immediate",
}

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, err := buildSQLiteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := requireForeignKeys(db); err != nil {
		return nil, err
	}
	return db, nil
}

// buildSQLiteDSN renders a file: URI. An empty path or ":memory:" selects a
// shared in-memory database. cfg.Options override the defaults.
func buildSQLiteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	params := url.Values{}
	path := strings.TrimSpace(cfg.Path)
	memory := path == "" || strings.EqualFold(path, ":memory:")
	if memory {
		path = ":memory:"
		params.Set("cache", "shared")
		params.Set("_foreign_keys", "1")
	} else {
		if err := ensureDir(path); err != nil {
			return "", err
		}
		for key, value := range sqliteFileDefaults {
			params.Set(key, value)
		}
	}
	for key, value := range cfg.Options {
		params.Set(key, value)
	}

	return fmt.Sprintf("file:%s?%s", filepath.ToSlash(path), params.Encode()), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// requireForeignKeys turns enforcement on when a DSN override left it off;
// session rows cascade with their user.
func requireForeignKeys(db *gorm.DB) error {
	var enabled int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&enabled).Error; err != nil {
		return fmt.Errorf("sqlite: read foreign_keys pragma: %w", err)
	}
	if enabled != 1 {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return fmt.Errorf("sqlite: enable foreign keys: %w", err)
		}
	}
	return nil
}
