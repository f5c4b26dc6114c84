package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
	fail   error
	calls  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}}
}

func (m *memoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return 0, 0, m.fail
	}
	n := int64(len(m.values[key])) + 1
	m.values[key] = make([]byte, n)
	return n, window, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return m.fail
	}
	m.values[key] = value
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return nil, false, m.fail
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return m.fail
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestFallbackStoreUsesPrimaryWhenHealthy(t *testing.T) {
	primary, fallback := newMemoryStore(), newMemoryStore()
	store, err := NewFallbackStore(primary, fallback, BreakerConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", string(value))

	_, inFallback := fallback.values["k"]
	require.False(t, inFallback)

	count, _, err := store.IncrementWithTTL(ctx, "n", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestFallbackStoreServesFromFallbackOnError(t *testing.T) {
	primary, fallback := newMemoryStore(), newMemoryStore()
	primary.fail = errors.New("connection refused")
	store, err := NewFallbackStore(primary, fallback, BreakerConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.Equal(t, "v", string(fallback.values["k"]))

	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v", string(value))
}

func TestFallbackStoreOpensBreaker(t *testing.T) {
	primary, fallback := newMemoryStore(), newMemoryStore()
	primary.fail = errors.New("timeout")
	store, err := NewFallbackStore(primary, fallback, BreakerConfig{
		MinRequests:  3,
		FailureRatio: 0.5,
		Timeout:      time.Hour,
	})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.Get(ctx, "k")
		require.NoError(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, store.State())

	callsBefore := primary.calls
	_, _, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, callsBefore, primary.calls, "open breaker must not reach the primary store")
}

func TestFallbackStoreDeleteReachesBothStores(t *testing.T) {
	primary, fallback := newMemoryStore(), newMemoryStore()
	primary.values["k"] = []byte("p")
	fallback.values["k"] = []byte("f")
	store, err := NewFallbackStore(primary, fallback, BreakerConfig{})
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "k"))
	require.Empty(t, primary.values)
	require.Empty(t, fallback.values)

	primary.fail = errors.New("down")
	fallback.values["x"] = []byte("f")
	err = store.Delete(context.Background(), "x")
	require.Error(t, err)
	require.Empty(t, fallback.values)
}

func TestNewFallbackStoreRequiresStores(t *testing.T) {
	_, err := NewFallbackStore(nil, newMemoryStore(), BreakerConfig{})
	require.Error(t, err)
}

func TestRedisStoreKeyPrefixing(t *testing.T) {
	store := &RedisStore{prefix: "snippets:"}
	require.Equal(t, "snippets:rl:ip", store.key("rl::ip"))
	require.Equal(t, "snippets:rl:ip", store.key("snippets:rl:ip"))
	require.Nil(t, NewRedisStore(nil, ""))
}

func TestNewRedisClientRequiresAddress(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{})
	require.Error(t, err)
}
