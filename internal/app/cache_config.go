package app

import (
	"strings"

	"github.com/charlesng35/snippets/internal/cache"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
		Prefix:   strings.TrimSpace(c.Redis.Prefix),
	}
}

// BreakerSettings converts the breaker section into cache.BreakerConfig.
func (c CacheConfig) BreakerSettings() cache.BreakerConfig {
	return cache.BreakerConfig{
		Name:         "redis",
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     c.Breaker.Interval,
		Timeout:      c.Breaker.Timeout,
		MinRequests:  c.Breaker.MinRequests,
		FailureRatio: c.Breaker.FailureRatio,
	}
}
