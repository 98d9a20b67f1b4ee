package utils

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/3run4/stampcard/config"
)

const (
	defaultCacheTTL = 30 * time.Second
	cacheOpTimeout  = 2 * time.Second
)

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// Cache holds short-lived JSON values such as the public prize table. It prefers Redis so
// every instance sees an invalidation, and falls back to process memory.
type Cache struct {
	rc  *redis.Client
	mu  sync.Mutex
	mem map[string]cacheEntry
	now func() time.Time
}

// NewCache uses rc when non-nil, memory otherwise.
func NewCache(rc *redis.Client) *Cache {
	return &Cache{rc: rc, mem: map[string]cacheEntry{}, now: time.Now}
}

// NewCacheFromConfig shares Redis with the session store when that backend is selected.
func NewCacheFromConfig(cfg config.AppConfig, logger *zap.Logger) *Cache {
	if cfg.SessionBackend != config.SessionBackendRedis {
		return NewCache(nil)
	}
	rc, err := NewRedis(cfg)
	if err != nil {
		_ = rc.Close()
		logger.Warn("cache: redis unavailable, using memory", zap.Error(err))
		return NewCache(nil)
	}
	return NewCache(rc)
}

// GetJSON decodes a cached value into v. Misses and decode failures both report false.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	b, ok := c.getBytes(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

func (c *Cache) getBytes(ctx context.Context, key string) ([]byte, bool) {
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		b, err := c.rc.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				Sugar.Debugf("cache get miss key=%s err=%v", key, err)
			}
			return nil, false
		}
		return b, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.mem[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.mem, key)
		return nil, false
	}
	return e.data, true
}

// SetJSON marshals v and stores it. A zero ttl uses the default.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if c.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
		defer cancel()
		if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
		return
	}
	c.mu.Lock()
	c.mem[key] = cacheEntry{data: b, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// InvalidateByPrefix deletes keys that match the given prefix, using SCAN on Redis.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if c.rc == nil {
		c.mu.Lock()
		for k := range c.mem {
			if strings.HasPrefix(k, prefix) {
				delete(c.mem, k)
			}
		}
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bounded rounds
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache invalidate failed prefix=%s err=%v", prefix, err)
			return
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			return
		}
	}
}
