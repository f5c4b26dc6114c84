package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/cache"
	"github.com/charlesng35/snippets/internal/database/testutil"
)

type brokenRateStore struct{}

func (brokenRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("backend down")
}

func pingRouter(store RateStore, max int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(store, max, window))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func ping(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	r := pingRouter(NewMemoryRateStore(), 2, 100*time.Millisecond)

	for i := 0; i < 2; i++ {
		w := ping(r)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ping(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	time.Sleep(120 * time.Millisecond)

	require.Equal(t, http.StatusOK, ping(r).Code)
}

func TestRateLimitWithDatabaseStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	r := pingRouter(NewCacheRateStore(cache.NewDatabaseStore(db)), 1, time.Minute)

	require.Equal(t, http.StatusOK, ping(r).Code)
	require.Equal(t, http.StatusTooManyRequests, ping(r).Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := pingRouter(brokenRateStore{}, 1, time.Minute)
	require.Equal(t, http.StatusOK, ping(r).Code)
	require.Equal(t, http.StatusOK, ping(r).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := pingRouter(nil, 0, time.Minute)
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, ping(r).Code)
	}
}

func TestMemoryRateStoreSweepsLapsedWindows(t *testing.T) {
	current := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return current })
	ctx := context.Background()

	count, ttl, err := store.Increment(ctx, "a", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 10*time.Second, ttl)

	current = current.Add(3 * time.Second)
	count, ttl, _ = store.Increment(ctx, "a", 10*time.Second)
	require.Equal(t, 2, count)
	require.Equal(t, 7*time.Second, ttl)
	_, _, _ = store.Increment(ctx, "b", 10*time.Second)
	require.Equal(t, 2, store.Len())

	current = current.Add(2 * rateSweepInterval)
	count, _, _ = store.Increment(ctx, "c", 10*time.Second)
	require.Equal(t, 1, count)
	require.Equal(t, 1, store.Len())
}

type failingCache struct{ cache.Store }

func (failingCache) IncrementWithTTL(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestCacheRateStoreCountsLocallyWhenStoreFails(t *testing.T) {
	r := pingRouter(NewCacheRateStore(failingCache{}), 1, time.Minute)

	require.Equal(t, http.StatusOK, ping(r).Code)
	require.Equal(t, http.StatusTooManyRequests, ping(r).Code)
	require.Nil(t, NewCacheRateStore(nil))
}
