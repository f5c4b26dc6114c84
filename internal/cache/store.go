package cache

import (
	"context"
	"strings"
	"time"
)

// Store is the key/value contract shared by the Redis, database and fallback
// backends. Counters written by IncrementWithTTL are readable through Get as
// decimal strings. Every backend normalises keys, so "snippets::gen" and
// "snippets:gen" address the same entry.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*DatabaseStore)(nil)
	_ Store = (*FallbackStore)(nil)
)

// normalizeKey collapses repeated separators so "a::b" and "a:b" address the same entry.
func normalizeKey(key string) string {
	if key == "" {
		return key
	}
	var builder strings.Builder
	builder.Grow(len(key))
	prevColon := false
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if ch == ':' {
			if prevColon {
				continue
			}
			prevColon = true
		} else {
			prevColon = false
		}
		builder.WriteByte(ch)
	}
	return builder.String()
}
