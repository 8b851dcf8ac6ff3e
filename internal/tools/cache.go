package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/QuixiAI/Hexis/internal/config"
	"github.com/QuixiAI/Hexis/internal/xerrors"
)

// configCache is the registry's per-process ToolsConfig cache (§4.D:
// "the tool registry's config_cache is per-process and self-expiring, 60s
// TTL"). The default backend holds the value in memory; when
// tools.cache_backend=redis is configured, reads and refreshes go through a
// shared Redis key instead so a fleet of workers observes the same TTL
// window rather than each re-polling the DB on its own clock.
type configCache struct {
	loader *config.Loader
	ttl    time.Duration

	mu      sync.Mutex
	value   config.ToolsConfig
	expires time.Time

	redis    *redis.Client
	redisKey string
}

func newConfigCache(loader *config.Loader, ttl time.Duration) *configCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &configCache{loader: loader, ttl: ttl}
}

// withRedis switches the cache to a Redis-backed store, shared across
// processes under redisKey.
func (c *configCache) withRedis(client *redis.Client, redisKey string) *configCache {
	c.redis = client
	c.redisKey = redisKey
	return c
}

// Get returns the cached ToolsConfig, refreshing from the loader if the TTL
// has elapsed. force bypasses the TTL check entirely.
func (c *configCache) Get(ctx context.Context, force bool) (config.ToolsConfig, error) {
	if c.redis != nil {
		return c.getRedis(ctx, force)
	}
	return c.getLocal(ctx, force)
}

func (c *configCache) getLocal(ctx context.Context, force bool) (config.ToolsConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !force && time.Now().Before(c.expires) {
		return c.value, nil
	}
	cfg, err := config.LoadToolsConfig(ctx, c.loader)
	if err != nil {
		return config.ToolsConfig{}, err
	}
	c.value = cfg
	c.expires = time.Now().Add(c.ttl)
	return cfg, nil
}

func (c *configCache) getRedis(ctx context.Context, force bool) (config.ToolsConfig, error) {
	if !force {
		raw, err := c.redis.Get(ctx, c.redisKey).Bytes()
		if err == nil {
			var cfg config.ToolsConfig
			if err := json.Unmarshal(raw, &cfg); err == nil {
				return cfg, nil
			}
		} else if err != redis.Nil {
			return config.ToolsConfig{}, xerrors.Wrap("tool.cache_unavailable", err)
		}
	}
	cfg, err := config.LoadToolsConfig(ctx, c.loader)
	if err != nil {
		return config.ToolsConfig{}, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return config.ToolsConfig{}, xerrors.Wrap("tool.cache_unavailable", err)
	}
	// Best-effort: a write failure just means the next Get refreshes again
	// from the DB rather than serving a shared value.
	_ = c.redis.Set(ctx, c.redisKey, raw, c.ttl).Err()
	return cfg, nil
}
