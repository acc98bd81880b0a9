// Package limiter spaces out page fetches per marketplace domain using a
// shared Redis lock, so concurrent sessions against the same site do not
// hammer it.
package limiter

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const minDelay = 100 * time.Millisecond

type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: rdb}
}

// Wait blocks until this process may fetch from domain again. The lock
// key expires after delay, so a crashed crawler never wedges a domain.
func (rl *RedisRateLimiter) Wait(ctx context.Context, domain string, delay time.Duration) error {
	if delay < minDelay {
		delay = minDelay
	}

	key := "crawler:ratelimit:" + domain

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			success, err := rl.client.SetNX(ctx, key, 1, delay).Result()
			if err != nil {
				return err
			}
			if success {
				return nil
			}

			ttl, err := rl.client.TTL(ctx, key).Result()
			if err != nil {
				return err
			}

			wait := time.Second
			if ttl > 0 {
				wait = ttl + time.Duration(rand.Int63n(int64(ttl/10)+1))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}
