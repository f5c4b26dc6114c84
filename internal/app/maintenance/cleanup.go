package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/logger"
)

// Job names as reported to the job tracker and metrics.
const (
	JobSessions = "sessions"
	JobAudit    = "audit"
	JobOrphans  = "orphans"
	JobCache    = "cache"
)

const (
	defaultAuditRetentionDays = 90
	defaultSessionSpec        = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultOrphanSpec         = "@daily"
	defaultCacheSpec          = "@hourly"
)

// ExpiringStore is a cache backend whose expired rows must be purged explicitly.
type ExpiringStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance tasks: purging expired sessions,
// pruning stale audit logs, removing snippets whose owner disappeared and
// purging expired cache rows.
type Cleaner struct {
	sessions  *iauth.SessionService
	audit     *services.AuditService
	snippets  *services.SnippetService
	cache     ExpiringStore
	tracker   *monitoring.JobTracker
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	sessionSchedule string
	auditSchedule   string
	orphanSchedule  string
	cacheSchedule   string
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) (int64, error)
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCacheStore enables purging of expired rows from a database-backed cache.
func WithCacheStore(store ExpiringStore) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = store
	}
}

// WithTracker records every job run in tracker.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithOrphanSchedule overrides the cron specification for orphaned snippet removal.
func WithOrphanSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.orphanSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency results in the
// corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, audit *services.AuditService, snippets *services.SnippetService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		audit:           audit,
		snippets:        snippets,
		now:             time.Now,
		retention:       defaultAuditRetentionDays,
		sessionSchedule: defaultSessionSpec,
		auditSchedule:   defaultAuditSpec,
		orphanSchedule:  defaultOrphanSpec,
		cacheSchedule:   defaultCacheSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.sessions != nil {
		jobs = append(jobs, job{JobSessions, c.sessionSchedule, c.sessions.CleanupExpired})
	}
	if c.audit != nil && c.retention > 0 {
		jobs = append(jobs, job{JobAudit, c.auditSchedule, func(ctx context.Context) (int64, error) {
			return c.audit.CleanupOlderThan(ctx, c.retention)
		}})
	}
	if c.snippets != nil {
		jobs = append(jobs, job{JobOrphans, c.orphanSchedule, c.snippets.DeleteOrphans})
	}
	if c.cache != nil {
		jobs = append(jobs, job{JobCache, c.cacheSchedule, func(ctx context.Context) (int64, error) {
			return c.cache.PurgeExpired(ctx, c.now())
		}})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		if c.tracker != nil {
			c.tracker.Register(j.name)
		}
		if _, err := c.cron.AddFunc(j.spec, func() {
			_ = c.run(context.Background(), j)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.run(ctx, j))
	}
	return errs
}

func (c *Cleaner) run(ctx context.Context, j job) error {
	started := time.Now()
	removed, err := j.run(ctx)
	if c.tracker != nil {
		c.tracker.Record(j.name, err, time.Since(started))
	}
	if err != nil {
		c.log.Warn("cleanup failed", zap.String("job", j.name), zap.Error(err))
		return err
	}
	if removed > 0 {
		c.log.Debug("cleanup finished", zap.String("job", j.name), zap.Int64("removed", removed))
	}
	return nil
}
