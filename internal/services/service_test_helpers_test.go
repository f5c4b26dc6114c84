package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/internal/database/testutil"
	"github.com/charlesng35/snippets/internal/models"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithSeedData())
}

func createTestUser(t *testing.T, db *gorm.DB, username string, level models.AccessLevel) *models.User {
	t.Helper()
	user := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "hashed",
		AccessLevel: level,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func strPtr(v string) *string { return &v }

// countingStore wraps a cache.Store and counts data reads that hit.
type countingStore struct {
	cache.Store
	hits atomic.Int64
	sets atomic.Int64
	fail atomic.Bool
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.fail.Load() {
		return nil, false, errors.New("cache offline")
	}
	value, ok, err := c.Store.Get(ctx, key)
	if ok && err == nil && len(key) > len("snippets:visible") && key[:len("snippets:visible")] == "snippets:visible" {
		c.hits.Add(1)
	}
	return value, ok, err
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.fail.Load() {
		return errors.New("cache offline")
	}
	c.sets.Add(1)
	return c.Store.Set(ctx, key, value, ttl)
}

func (c *countingStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if c.fail.Load() {
		return 0, 0, errors.New("cache offline")
	}
	return c.Store.IncrementWithTTL(ctx, key, window)
}
