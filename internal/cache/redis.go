package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache implements Cache on top of a redis client. Backend errors are
// logged at debug level and reported as misses; the resolver must keep
// working with redis down.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedis wraps an already-connected redis client.
func NewRedis(rdb *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, logger: logger}
}

func (c *RedisCache) Put(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Debug("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Increment is a single INCR so concurrent callers never lose updates; the
// TTL is attached only when the increment created the key.
func (c *RedisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	val, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			c.logger.Debug("cache expire failed", zap.String("key", key), zap.Error(err))
		}
	}
	return val, nil
}
