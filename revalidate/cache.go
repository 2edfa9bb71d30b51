// Package revalidate caches rendered product pages and invalidates them when
// the data behind a page changes.
package revalidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-backend/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "page:"

// PageCache stores rendered pages by path. Revalidate is fire-and-forget:
// failures are logged, never returned.
type PageCache interface {
	Get(ctx context.Context, path string) ([]byte, bool)
	Set(ctx context.Context, path string, body []byte)
	Revalidate(ctx context.Context, path string)
}

// ProductPath is the display path of a product page.
func ProductPath(slug string) string {
	return "/product/" + slug
}

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache is a PageCache backed by Redis.
type RedisCache struct {
	store cmdable
	raw   *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewRedisCache connects to url and verifies the connection.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration, logg *logger.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{store: raw, raw: raw, ttl: ttl, log: logg}, nil
}

func newRedisCacheWithStore(store cmdable, ttl time.Duration, logg *logger.Logger) *RedisCache {
	return &RedisCache{store: store, ttl: ttl, log: logg}
}

func key(path string) string {
	return keyPrefix + path
}

func (c *RedisCache) Get(ctx context.Context, path string) ([]byte, bool) {
	body, err := c.store.Get(ctx, key(path)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Error(c.log.WithField(ctx, "path", path), "page cache read failed", err)
		}
		return nil, false
	}
	return body, true
}

func (c *RedisCache) Set(ctx context.Context, path string, body []byte) {
	if err := c.store.Set(ctx, key(path), body, c.ttl).Err(); err != nil {
		c.log.Error(c.log.WithField(ctx, "path", path), "page cache write failed", err)
	}
}

func (c *RedisCache) Revalidate(ctx context.Context, path string) {
	if err := c.store.Del(ctx, key(path)).Err(); err != nil {
		c.log.Error(c.log.WithField(ctx, "path", path), "page revalidation failed", err)
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Noop is used when no cache is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Noop) Set(context.Context, string, []byte) {}
func (Noop) Revalidate(context.Context, string) {}
