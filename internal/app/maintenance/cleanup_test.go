package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/snippets/internal/auth"
	"github.com/charlesng35/snippets/internal/cache"
	testutil "github.com/charlesng35/snippets/internal/database/testutil"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/monitoring"
	"github.com/charlesng35/snippets/internal/services"
	"github.com/charlesng35/snippets/pkg/crypto"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)
	snippetSvc, err := services.NewSnippetService(db)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "cleanup-secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	clock := &fixedClock{current: time.Now()}

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{
		RefreshTokenTTL: time.Hour,
		RefreshLength:   16,
		Clock:           clock.Now,
	})
	require.NoError(t, err)

	user := seedUser(t, db, "cleanup-user")

	_, expiredSession, err := sessionSvc.CreateSession(ctx, user, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", expiredSession.ID).
		Update("expires_at", clock.Now().Add(-2*time.Hour)).Error)

	_, activeSession, err := sessionSvc.CreateSession(ctx, user, iauth.SessionMetadata{})
	require.NoError(t, err)

	_, revokedSession, err := sessionSvc.CreateSession(ctx, user, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, sessionSvc.RevokeSession(ctx, revokedSession.ID))

	// audit log older than the retention window
	require.NoError(t, auditSvc.Log(ctx, services.AuditEntry{
		Action:   "test.action",
		Result:   "success",
		Username: "tester",
	}))
	var auditLog models.AuditLog
	require.NoError(t, db.First(&auditLog).Error)
	require.NoError(t, db.Model(&auditLog).Update("created_at", clock.Now().AddDate(0, 0, -10)).Error)

	// a private snippet whose owner row was removed behind the service's back
	ghost := "ghost-user"
	require.NoError(t, db.Create(&models.Snippet{UserID: &ghost, Name: "orphan", Value: "lost"}).Error)
	require.NoError(t, db.Create(&models.Snippet{UserID: &user.ID, Name: "kept", Value: "mine"}).Error)
	require.NoError(t, db.Create(&models.Snippet{Name: "global", Value: "shared"}).Error)

	store := cache.NewDatabaseStore(db)
	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Millisecond))
	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), time.Hour))
	clock.current = clock.current.Add(time.Second)

	tracker := monitoring.NewJobTracker()
	c := NewCleaner(sessionSvc, auditSvc, snippetSvc,
		WithNow(clock.Now),
		WithAuditRetentionDays(7),
		WithCacheStore(store),
		WithTracker(tracker),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	require.NoError(t, c.RunOnce(ctx))

	assertNotFound := func(id string) {
		var s models.Session
		err := db.First(&s, "id = ?", id).Error
		require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	}
	assertNotFound(expiredSession.ID)
	assertNotFound(revokedSession.ID)

	var remaining models.Session
	require.NoError(t, db.First(&remaining, "id = ?", activeSession.ID).Error)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	require.Equal(t, int64(0), count)

	var snippets []models.Snippet
	require.NoError(t, db.Order("name").Find(&snippets).Error)
	require.Len(t, snippets, 2)
	require.Equal(t, "global", snippets[0].Name)
	require.Equal(t, "kept", snippets[1].Name)

	_, ok, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.Model(&models.CacheEntry{}).Where(&models.CacheEntry{Key: "stale"}).Count(&count).Error)
	require.Equal(t, int64(0), count)

	jobs := tracker.Jobs()
	require.Len(t, jobs, 4)
	for _, job := range jobs {
		require.Equal(t, uint64(1), job.TotalRuns, job.Job)
		require.Zero(t, job.Failures, job.Job)
	}
}

func TestCleanerRecordsFailures(t *testing.T) {
	tracker := monitoring.NewJobTracker()
	c := NewCleaner(nil, nil, nil, WithCacheStore(failingStore{}), WithTracker(tracker))

	err := c.RunOnce(context.Background())
	require.Error(t, err)

	jobs := tracker.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, JobCache, jobs[0].Job)
	require.Equal(t, uint64(1), jobs[0].ConsecutiveFailures)
	require.Contains(t, jobs[0].LastError, "purge failed")
}

func TestCleanerStartStopDoesNotLeak(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	snippetSvc, err := services.NewSnippetService(db)
	require.NoError(t, err)

	// the database pool goroutines live until t.Cleanup
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tracker := monitoring.NewJobTracker()
	c := NewCleaner(nil, nil, snippetSvc, WithTracker(tracker))
	require.NoError(t, c.Start())

	jobs := tracker.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, JobOrphans, jobs[0].Job)
	require.Zero(t, jobs[0].TotalRuns)

	<-c.Stop().Done()
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	c := NewCleaner(nil, nil, nil, WithCacheStore(failingStore{}), WithCacheSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerWithoutJobsIsNoop(t *testing.T) {
	c := NewCleaner(nil, nil, nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
}

type failingStore struct{}

func (failingStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("purge failed")
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword("Password123!")
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
