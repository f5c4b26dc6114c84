package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/api"
	"github.com/charlesng35/snippets/internal/app"
	"github.com/charlesng35/snippets/internal/app/maintenance"
	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/internal/middleware"
	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/internal/monitoring/checks"
	"github.com/charlesng35/snippets/internal/services"
)

const probeTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    cache.Store
	Services *api.Services
	Health   *monitoring.HealthManager
	Jobs     *monitoring.JobTracker
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore

	var breaker checks.BreakerState
	if cfg.Cache.Redis.Enabled {
		stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			fallback, err := cache.NewFallbackStore(
				cache.NewRedisStore(stack.Redis, cfg.Cache.Redis.Prefix),
				dbStore,
				cfg.Cache.BreakerSettings(),
			)
			if err != nil {
				return nil, fmt.Errorf("initialise cache breaker: %w", err)
			}
			stack.Cache = fallback
			breaker = fallback
		}
	}

	stack.Services, err = api.NewServices(stack.DB, cfg, stack.Cache)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	stack.Jobs = monitoring.NewJobTracker()
	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(
			stack.Services.Sessions,
			stack.Services.Audit,
			stack.Services.Snippets,
			maintenance.WithCacheStore(dbStore),
			maintenance.WithTracker(stack.Jobs),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
			maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithOrphanSchedule(cfg.Maintenance.OrphanSchedule),
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Health = monitoring.NewHealthManager(
		monitoring.WithVersion(services.SnippetsVersion),
		monitoring.WithCheckTimeout(2*probeTimeout),
	)
	stack.Health.RegisterReadiness(checks.Database(stack.DB, probeTimeout))
	var ping checks.PingFunc
	if stack.Redis != nil {
		ping = checks.RedisPing(stack.Redis)
	}
	stack.Health.RegisterReadiness(checks.Cache(ping, breaker, cfg.Cache.Redis.Enabled, probeTimeout))
	if stack.Cleaner != nil {
		stack.Health.RegisterLiveness(checks.Maintenance(stack.Jobs, 0))
	}

	stack.Router, err = api.NewRouter(stack.Services, api.RouterOptions{
		Config:    cfg,
		Health:    stack.Health,
		RateStore: middleware.NewCacheRateStore(stack.Cache),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	app.CloseDatabase(s.DB)
}
