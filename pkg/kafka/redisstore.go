package kafka

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore backs IdempotencyStore with Redis so deduplication
// survives restarts and works across consumer replicas. Keys carry a TTL so
// the set stays bounded.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed store. The prefix
// namespaces keys per consumer group, e.g. "idem:inventory".
func NewRedisIdempotencyStore(client *redis.Client, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisIdempotencyStore) key(eventID string) string {
	return s.prefix + ":" + eventID
}

// Contains reports whether the event ID is present in Redis.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Add records the event ID with the configured TTL.
func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.key(eventID), 1, s.ttl).Err()
}
