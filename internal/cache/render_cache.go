package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "inkwell:render:"
	defaultTTL    = 24 * time.Hour
)

// RenderCache stores rendered post HTML in Redis.
// Keys carry the post's update time, so stale entries simply expire.
type RenderCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRenderCache wraps an existing client; ttl <= 0 falls back to 24h.
func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RenderCache{client: client, prefix: defaultPrefix, ttl: ttl}
}

// Connect 解析 redis URL 并确认连接可用。
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RenderCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *RenderCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}
