package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

// RedisCache is a distributed Cache using Redis's native key TTL (grounded
// on original_source's RedisCache: a plain GET/SET with EX).
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache builds a Cache against a redis:// URL, configured from CACHE_URL.
func NewRedisCache(url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse CACHE_URL: %v", klerrors.ErrConfig, err)
	}
	return &RedisCache{rdb: redis.NewClient(opt)}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: redis get: %v", klerrors.ErrStore, err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttlSeconds int) error {
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}
	if err := c.rdb.Set(ctx, key, data, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", klerrors.ErrStore, err)
	}
	return nil
}

func (c *RedisCache) Close() error { return c.rdb.Close() }
