package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiterRepository shares a rate limit window between processor
// instances through a counter key with the window as TTL.
type RedisLimiterRepository struct {
	client *redis.Client
}

func NewRedisLimiterRepository(client *redis.Client) *RedisLimiterRepository {
	return &RedisLimiterRepository{client: client}
}

func (r *RedisLimiterRepository) Allow(ctx context.Context, target, caller string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("rate_limit:%s:%s", target, caller)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}
