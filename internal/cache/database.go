package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/snippets/internal/models"
)

var (
	errStoreNotReady = errors.New("cache: database store not initialised")
	keyColumn        = clause.Column{Name: "key"}
)

// DatabaseStore keeps cache entries in the cache_entries table. It serves
// deployments without Redis and is the fallback when Redis trips.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

type DatabaseStoreOption func(*DatabaseStore)

// WithStoreClock replaces time.Now for expiry decisions.
func WithStoreClock(now func() time.Time) DatabaseStoreOption {
	return func(s *DatabaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDatabaseStore returns nil when db is nil.
func NewDatabaseStore(db *gorm.DB, opts ...DatabaseStoreOption) *DatabaseStore {
	if db == nil {
		return nil
	}
	s := &DatabaseStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DatabaseStore) session(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

// IncrementWithTTL counts hits in a fixed window. The first hit, or the
// first after the window lapsed, opens a new window of length window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = time.Minute
	}

	key = normalizeKey(key)
	now := s.now()

	var entry models.CacheEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(clause.Eq{Column: keyColumn, Value: key}).
			Take(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = models.CacheEntry{Key: key, Value: []byte("1"), ExpiresAt: now.Add(window)}
			return tx.Create(&entry).Error
		case err != nil:
			return err
		case entry.Expired(now):
			entry.Value = []byte("1")
			entry.ExpiresAt = now.Add(window)
		default:
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			entry.Value = []byte(strconv.FormatInt(current+1, 10))
		}
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	count, _ := strconv.ParseInt(string(entry.Value), 10, 64)
	return count, entry.ExpiresAt.Sub(now), nil
}

// Set upserts key. A ttl of zero or less stores an entry that never expires.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	db, err := s.session(ctx)
	if err != nil {
		return err
	}

	entry := models.CacheEntry{Key: normalizeKey(key), Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{keyColumn},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Get treats an expired entry as a miss and removes it.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.session(ctx)
	if err != nil {
		return nil, false, err
	}

	key = normalizeKey(key)
	var entry models.CacheEntry
	err = db.Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if entry.Expired(s.now()) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	db, err := s.session(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}

	values := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		values = append(values, normalizeKey(key))
	}
	return db.Where(clause.IN{Column: keyColumn, Values: values}).Delete(&models.CacheEntry{}).Error
}

// PurgeExpired deletes lapsed entries, skipping those without expiry, and
// returns how many went.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	db, err := s.session(ctx)
	if err != nil {
		return 0, err
	}
	result := db.Where("expires_at > ? AND expires_at <= ?", time.Time{}, now).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
