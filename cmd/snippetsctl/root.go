package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/api"
	"github.com/charlesng35/snippets/internal/app"
	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/pkg/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg   *app.Config
	db    *gorm.DB
	redis *redis.Client
	svc   *api.Services
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "snippetsctl",
		Short:         "Administer the snippets service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to configuration directory or file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newMigrateCmd(c),
		newPurgeOrphansCmd(c),
		newSecurityAuditCmd(c),
		newUserCmd(c),
		newSnippetsCmd(c),
	)
	return root
}

func (c *cli) loadConfig() error {
	var (
		cfg *app.Config
		err error
	)
	path := strings.TrimSpace(c.configPath)
	switch {
	case path == "":
		cfg, err = app.LoadConfig()
	default:
		info, statErr := os.Stat(path)
		if statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				return fmt.Errorf("config path %q does not exist", path)
			}
			return fmt.Errorf("stat config path: %w", statErr)
		}
		if !info.IsDir() {
			path = filepath.Dir(path)
		}
		cfg, err = app.LoadConfig(path)
	}
	if err != nil {
		return err
	}
	if _, err := app.ApplyRuntimeDefaults(cfg); err != nil {
		return err
	}

	cfg.Server.LogLevel = c.logLevel
	cfg.Server.LogFormat = "console"
	if err := app.ConfigureLogging(cfg.Server, zap.String("service", "snippetsctl")); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	c.cfg = cfg
	return nil
}

// services opens the database on first use. Snippet writes go through the
// same cache backend as the server so its cached sets are invalidated.
func (c *cli) services(cmd *cobra.Command) (*api.Services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	ctx := cmd.Context()
	db, err := app.OpenDatabase(ctx, c.cfg.Database)
	if err != nil {
		return nil, err
	}

	var store cache.Store = cache.NewDatabaseStore(db)
	if c.cfg.Cache.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, c.cfg.Cache.RedisClientConfig())
		if err != nil {
			logger.WithModule("cli").Warn("redis unavailable; invalidating database cache only", zap.Error(err))
		} else {
			c.redis = client
			fallback, err := cache.NewFallbackStore(cache.NewRedisStore(client, c.cfg.Cache.Redis.Prefix), store, c.cfg.Cache.BreakerSettings())
			if err != nil {
				c.close()
				app.CloseDatabase(db)
				return nil, err
			}
			store = fallback
		}
	}

	svc, err := api.NewServices(db, c.cfg, store)
	if err != nil {
		c.close()
		app.CloseDatabase(db)
		return nil, err
	}
	c.db = db
	c.svc = svc
	return svc, nil
}

func (c *cli) close() {
	if c.redis != nil {
		_ = c.redis.Close()
		c.redis = nil
	}
	app.CloseDatabase(c.db)
	c.db = nil
	c.svc = nil
}
