package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles ticket issuance per client so a stuck or abused
// kiosk cannot flood the queue. The window state lives in redis, shared by
// all instances.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per client per window. A zero or
// negative limit disables throttling.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the client identified by key may proceed.
func (r *RateLimiter) Allow(ctx context.Context, key string) bool {
	if r.limit <= 0 {
		return true
	}

	redisKey := fmt.Sprintf("senha:ratelimit:%s", key)
	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		// Fail open, issuance matters more than throttling
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, redisKey, r.window)
	}
	return count <= int64(r.limit)
}
