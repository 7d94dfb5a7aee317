package resolutioncache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-queryrefine-be/pkg/resolver"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies per session hash and is refreshed on every write
const DefaultTTL = 30 * 24 * time.Hour

// RedisCache keeps one hash per chat session: valuemap:<session> → {label␟property␟raw: resolved}
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ resolver.Cache = (*RedisCache)(nil)

// NewRedisCache stores entries with ttl; a zero ttl keeps them forever
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key resolver.CacheKey) (string, bool, error) {
	val, err := c.client.HGet(ctx, redisKey(key.SessionID), field(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key resolver.CacheKey, value string) error {
	hash := redisKey(key.SessionID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, hash, field(key), value)
	if c.ttl > 0 {
		pipe.Expire(ctx, hash, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Forget drops every resolution of one session
func (c *RedisCache) Forget(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, redisKey(sessionID)).Err()
}
