package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/charlesng35/snippets/internal/monitoring"
)

const defaultRedisTimeout = 2 * time.Second

// PingFunc probes a remote cache.
type PingFunc func(ctx context.Context) error

// RedisPing adapts a go-redis client to a PingFunc.
func RedisPing(client redis.UniversalClient) PingFunc {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// BreakerState reports the circuit breaker guarding the shared cache.
type BreakerState interface {
	State() gobreaker.State
}

// Cache returns a readiness probe for the shared cache. A disabled cache is
// reported up; an unreachable one or an open breaker is reported degraded
// because requests fall back to the database store.
func Cache(ping PingFunc, breaker BreakerState, enabled bool, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if !enabled {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "redis disabled, using database cache",
				Duration: time.Since(start),
			}
		}
		if ping == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "redis unavailable",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultRedisTimeout))
		defer cancel()

		if err := ping(probeCtx); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "redis: " + err.Error(),
				Duration: time.Since(start),
			}
		}

		if breaker != nil && breaker.State() != gobreaker.StateClosed {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "circuit breaker " + breaker.State().String(),
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}
