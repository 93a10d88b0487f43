package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CounterStore backed by Redis, for deployments where
// several instances must share one view of a client's request rate.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ CounterStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed counter store. All keys are
// namespaced under the given prefix (default "ratelimit").
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Increment applies fixed-window semantics with INCR plus a TTL set
// only on the first hit of the window.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := s.prefix + ":" + key

	count, err := s.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing counter: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, full, window).Err(); err != nil {
			return 0, fmt.Errorf("setting counter ttl: %w", err)
		}
	}

	return count, nil
}
