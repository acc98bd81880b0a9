package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{client: rdb}
}

func (s *RedisStore) AddToSet(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.client.SAdd(ctx, key, args...).Result()
}

func (s *RedisStore) IsMemberBatch(ctx context.Context, keys []string, member string) ([]bool, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.SIsMember(ctx, key, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	results := make([]bool, len(keys))
	for i, cmd := range cmds {
		results[i] = cmd.Val()
	}
	return results, nil
}

func (s *RedisStore) ScanKeys(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	return s.client.Scan(ctx, cursor, pattern, count).Result()
}

func (s *RedisStore) ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.ExpireNX(ctx, key, ttl).Result()
}
