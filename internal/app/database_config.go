package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/database"
	"github.com/charlesng35/snippets/pkg/logger"
)

// ConnectionConfig maps the configured driver section onto database.Config.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	cfg := database.Config{
		Driver:          driver,
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	if len(host.Options) > 0 {
		cfg.Options = make(map[string]string, len(host.Options))
		for k, v := range host.Options {
			cfg.Options[k] = v
		}
	}
	return cfg
}

// OpenDatabase connects using the configured driver, migrates the schema and
// runs pending upgrade steps.
func OpenDatabase(ctx context.Context, c DatabaseConfig) (*gorm.DB, error) {
	db, err := database.Open(c.ConnectionConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		CloseDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}
	version, err := database.ApplyUpgrades(ctx, db, database.UpgradeSteps())
	if err != nil {
		CloseDatabase(db)
		return nil, fmt.Errorf("upgrade database: %w", err)
	}

	logger.WithModule("database").Info("database ready",
		zap.String("driver", c.ConnectionConfig().Driver),
		zap.Int("schema_version", version))
	return db, nil
}

// CloseDatabase releases the underlying connection pool.
func CloseDatabase(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithModule("database").Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.WithModule("database").Warn("failed to close database", zap.Error(err))
	}
}
