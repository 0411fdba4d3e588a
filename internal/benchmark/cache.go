package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
)

// Cache stores whole benchmark entries. Set replaces any previous value for
// the key atomically; readers never observe a partial entry.
type Cache interface {
	Get(ctx context.Context, key string) (domain.BenchmarkEntry, bool, error)
	Set(ctx context.Context, key string, e domain.BenchmarkEntry, ttl time.Duration) error
}

type memItem struct {
	entry   domain.BenchmarkEntry
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (domain.BenchmarkEntry, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(it.expires) {
		return domain.BenchmarkEntry{}, false, nil
	}
	return it.entry, true, nil
}

// Set implements Cache. Expired items are dropped on every write.
func (c *MemoryCache) Set(_ context.Context, key string, e domain.BenchmarkEntry, ttl time.Duration) error {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, it := range c.items {
		if !now.Before(it.expires) {
			delete(c.items, k)
		}
	}
	c.items[key] = memItem{entry: e, expires: now.Add(ttl)}
	return nil
}

// Len returns the number of stored items, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// RedisCache stores entries as JSON strings in Redis.
type RedisCache struct {
	Client *redis.Client
}

// Get implements Cache.
func (c RedisCache) Get(ctx context.Context, key string) (domain.BenchmarkEntry, bool, error) {
	raw, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BenchmarkEntry{}, false, nil
	}
	if err != nil {
		return domain.BenchmarkEntry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var e domain.BenchmarkEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.BenchmarkEntry{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return e, true, nil
}

// Set implements Cache.
func (c RedisCache) Set(ctx context.Context, key string, e domain.BenchmarkEntry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.Client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
