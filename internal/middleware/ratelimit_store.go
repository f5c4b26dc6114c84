package middleware

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/pkg/logger"
)

const rateSweepInterval = time.Minute

// RateStore counts requests per key in fixed windows.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// MemoryRateStore keeps counters in process. Lapsed windows are dropped on
// write at most once per rateSweepInterval.
type MemoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]rateWindow
	now       func() time.Time
	nextSweep time.Time
}

type rateWindow struct {
	hits int
	ends time.Time
}

func NewMemoryRateStore() *MemoryRateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(now func() time.Time) *MemoryRateStore {
	return &MemoryRateStore{windows: make(map[string]rateWindow), now: now}
}

func (s *MemoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextSweep) {
		for k, w := range s.windows {
			if !now.Before(w.ends) {
				delete(s.windows, k)
			}
		}
		s.nextSweep = now.Add(rateSweepInterval)
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.ends) {
		w = rateWindow{ends: now.Add(window)}
	}
	w.hits++
	s.windows[key] = w
	return w.hits, w.ends.Sub(now), nil
}

// Len reports how many windows are tracked.
func (s *MemoryRateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// sharedRateStore counts through a cache.Store so every replica sees the
// same windows. While the store errors, counting continues per process.
type sharedRateStore struct {
	store cache.Store
	local *MemoryRateStore
}

// NewCacheRateStore returns nil for a nil store so RateLimit falls back to
// its in-memory default.
func NewCacheRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &sharedRateStore{store: store, local: NewMemoryRateStore()}
}

func (s *sharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	if err != nil {
		logger.WithModule("ratelimit").Debug("shared rate store failed, counting locally",
			zap.String("key", key), zap.Error(err))
		return s.local.Increment(ctx, key, window)
	}
	return int(count), ttl, nil
}
