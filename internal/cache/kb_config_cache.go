package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"askcampus/internal/app"
)

// KBConfigCache fronts the public knowledge-base config lookup, the hottest
// read path: every chat page load starts with it.
type KBConfigCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewKBConfigCache(client *redisv9.Client, ttl time.Duration) *KBConfigCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &KBConfigCache{client: client, ttl: ttl}
}

func (c *KBConfigCache) Get(ctx context.Context, slug string) (*app.PublicKBConfig, error) {
	raw, err := c.client.Get(ctx, c.key(slug)).Result()
	if err == redisv9.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get kb config failed: %w", err)
	}

	var cfg app.PublicKBConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal cached kb config failed: %w", err)
	}
	return &cfg, nil
}

func (c *KBConfigCache) Set(ctx context.Context, slug string, cfg *app.PublicKBConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal kb config cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(slug), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set kb config failed: %w", err)
	}
	return nil
}

func (c *KBConfigCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, c.key(slug)).Err(); err != nil {
		return fmt.Errorf("redis delete kb config failed: %w", err)
	}
	return nil
}

func (c *KBConfigCache) key(slug string) string {
	return "kb:config:" + slug
}
