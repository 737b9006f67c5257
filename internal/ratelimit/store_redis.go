package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a fixed window counter shared by every replica. The key
// expires with the window, so an idle client's budget resets on its own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	pipe := s.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	used := int(count.Val())
	result := &Result{
		Allowed: used <= limit,
		Limit:   limit,
		ResetAt: time.Now().Add(ttl.Val()),
	}
	if remaining := limit - used; remaining > 0 {
		result.Remaining = remaining
	}
	return result, nil
}
