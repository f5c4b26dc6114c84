package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/snippets/pkg/logger"
	"github.com/charlesng35/snippets/pkg/metrics"
)

// BreakerConfig tunes the circuit breaker placed in front of the primary store.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// FallbackStore sends every operation to the primary store through a circuit
// breaker and serves it from the fallback store when the primary fails or the
// breaker is open. Deletes always reach both stores so invalidations are not lost.
type FallbackStore struct {
	primary  Store
	fallback Store
	cb       *gobreaker.CircuitBreaker
	log      *zap.Logger
}

// NewFallbackStore wires primary and fallback behind a breaker built from cfg.
func NewFallbackStore(primary, fallback Store, cfg BreakerConfig) (*FallbackStore, error) {
	if primary == nil || fallback == nil {
		return nil, errors.New("cache: primary and fallback stores are required")
	}

	log := logger.WithModule("cache")
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	name := cfg.Name
	if name == "" {
		name = "cache"
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CacheBreakerState.Set(breakerStateValue(to))
			log.Warn("cache breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &FallbackStore{
		primary:  primary,
		fallback: fallback,
		cb:       gobreaker.NewCircuitBreaker(settings),
		log:      log,
	}, nil
}

// State exposes the breaker state for health reporting.
func (s *FallbackStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *FallbackStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	type result struct {
		count int64
		ttl   time.Duration
	}
	out, err := s.cb.Execute(func() (interface{}, error) {
		count, ttl, err := s.primary.IncrementWithTTL(ctx, key, window)
		return result{count, ttl}, err
	})
	if err == nil {
		r := out.(result)
		return r.count, r.ttl, nil
	}
	s.degraded("increment", err)
	return s.fallback.IncrementWithTTL(ctx, key, window)
}

func (s *FallbackStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Set(ctx, key, value, ttl)
	})
	if err == nil {
		return nil
	}
	s.degraded("set", err)
	return s.fallback.Set(ctx, key, value, ttl)
}

func (s *FallbackStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type result struct {
		value []byte
		found bool
	}
	out, err := s.cb.Execute(func() (interface{}, error) {
		value, found, err := s.primary.Get(ctx, key)
		return result{value, found}, err
	})
	if err == nil {
		r := out.(result)
		return r.value, r.found, nil
	}
	s.degraded("get", err)
	return s.fallback.Get(ctx, key)
}

func (s *FallbackStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, primaryErr := s.cb.Execute(func() (interface{}, error) {
		return nil, s.primary.Delete(ctx, keys...)
	})
	fallbackErr := s.fallback.Delete(ctx, keys...)
	if primaryErr != nil {
		s.degraded("delete", primaryErr)
		// the entry may still live in the primary store; surface that
		return multierr.Append(primaryErr, fallbackErr)
	}
	return fallbackErr
}

func (s *FallbackStore) degraded(op string, err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return
	}
	s.log.Warn("primary cache failed, using fallback", zap.String("op", op), zap.Error(err))
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
