package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ajoubeir/chat-service/internal/config"
	"github.com/ajoubeir/chat-service/internal/model"
	registrycache "github.com/ajoubeir/chat-service/internal/registry/cache"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registrycache.ProfileCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: CHAT_SERVICE_REDIS_URL is required")
	}
	ttl := cfg.CacheProfileTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return LoadFromURLWithTTL(ctx, cfg.RedisURL, ttl)
}

// LoadFromURL creates a ProfileCache from a Redis-compatible URL.
func LoadFromURL(ctx context.Context, redisURL string) (registrycache.ProfileCache, error) {
	return LoadFromURLWithTTL(ctx, redisURL, defaultTTL)
}

// LoadFromURLWithTTL creates a cache with an explicit profile TTL.
func LoadFromURLWithTTL(ctx context.Context, redisURL string, ttl time.Duration) (registrycache.ProfileCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisProfileCache{client: client, ttl: ttl}, nil
}

type redisProfileCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func profileKey(username string) string {
	return "profile:" + username
}

func (c *redisProfileCache) Available() bool {
	return true
}

func (c *redisProfileCache) Get(ctx context.Context, username string) (*model.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(username)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var profile model.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *redisProfileCache) Set(ctx context.Context, profile model.Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, profileKey(profile.Username), data, ttl).Err()
}

func (c *redisProfileCache) Remove(ctx context.Context, username string) error {
	return c.client.Del(ctx, profileKey(username)).Err()
}

var _ registrycache.ProfileCache = (*redisProfileCache)(nil)
