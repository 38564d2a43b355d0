package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/shortlink/utils"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	missingLinkMarker = "missing"

	// DefaultMemoryLinkCacheEntries bounds the in-process negative cache
	DefaultMemoryLinkCacheEntries = 100_000
)

// LinkCache remembers short codes that did not resolve to an active link
type LinkCache interface {
	IsMissing(ctx context.Context, code string) (bool, error)
	MarkMissing(ctx context.Context, code string) error
	Forget(ctx context.Context, code string) error
}

// RedisLinkCache stores missing markers under {prefix}link:{code}
type RedisLinkCache struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[bool]
}

func NewRedisLinkCache(client redis.UniversalClient, prefix string, ttl time.Duration, settings BreakerSettings) *RedisLinkCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLinkCache{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		breaker: newRedisBreaker[bool]("redis-link-cache", settings),
	}
}

func (c *RedisLinkCache) key(code string) string {
	return c.prefix + "link:" + code
}

func (c *RedisLinkCache) IsMissing(ctx context.Context, code string) (bool, error) {
	return c.breaker.Execute(func() (bool, error) {
		val, err := c.client.Get(ctx, c.key(code)).Result()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return val == missingLinkMarker, nil
	})
}

func (c *RedisLinkCache) MarkMissing(ctx context.Context, code string) error {
	_, err := c.breaker.Execute(func() (bool, error) {
		return true, c.client.Set(ctx, c.key(code), missingLinkMarker, c.ttl).Err()
	})
	return err
}

func (c *RedisLinkCache) Forget(ctx context.Context, code string) error {
	_, err := c.breaker.Execute(func() (bool, error) {
		return true, c.client.Del(ctx, c.key(code)).Err()
	})
	return err
}

// MemoryLinkCache is used when redis is disabled. Expired entries are swept at most once per
// sweep interval; at capacity an arbitrary entry is evicted to make room.
type MemoryLinkCache struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	nextSweep  time.Time
	missing    map[string]time.Time
}

func NewMemoryLinkCache(ttl time.Duration) *MemoryLinkCache {
	return NewBoundedMemoryLinkCache(ttl, DefaultMemoryLinkCacheEntries)
}

func NewBoundedMemoryLinkCache(ttl time.Duration, maxEntries int) *MemoryLinkCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryLinkCacheEntries
	}
	return &MemoryLinkCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		nextSweep:  utils.UTCNow().Add(ttl),
		missing:    make(map[string]time.Time),
	}
}

func (c *MemoryLinkCache) IsMissing(ctx context.Context, code string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	until, ok := c.missing[code]
	return ok && utils.UTCNow().Before(until), nil
}

func (c *MemoryLinkCache) MarkMissing(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := utils.UTCNow()
	if !now.Before(c.nextSweep) {
		c.sweepLocked(now)
	}
	if _, ok := c.missing[code]; !ok && len(c.missing) >= c.maxEntries {
		for k := range c.missing {
			delete(c.missing, k)
			break
		}
	}
	c.missing[code] = now.Add(c.ttl)
	return nil
}

func (c *MemoryLinkCache) sweepLocked(now time.Time) {
	for k, until := range c.missing {
		if now.After(until) {
			delete(c.missing, k)
		}
	}
	c.nextSweep = now.Add(c.ttl)
}

// Len reports how many codes are currently remembered, expired ones included until the next sweep
func (c *MemoryLinkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.missing)
}

func (c *MemoryLinkCache) Forget(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.missing, code)
	return nil
}
