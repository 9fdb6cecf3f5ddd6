package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/core/domain"
)

type cacheEntry struct {
	value     domain.CachedResult
	expiresAt time.Time
}

// ResultCache - кэш результатов в памяти процесса с истечением по TTL
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
	now        func() time.Time
}

func NewResultCache(defaultTTL time.Duration) *ResultCache {
	if defaultTTL <= 0 {
		defaultTTL = constants.DefaultCacheTTL
	}
	return &ResultCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *ResultCache) WithClock(now func() time.Time) *ResultCache {
	c.now = now
	return c
}

func (c *ResultCache) Get(_ context.Context, url string) (*domain.CachedResult, error) {
	key := domain.CacheKey(url)
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	value := entry.value
	return &value, nil
}

func (c *ResultCache) Set(_ context.Context, url string, data domain.ScrapedProduct, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain.CacheKey(url)] = cacheEntry{
		value:     domain.CachedResult{Data: data, CachedAt: now.UTC()},
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (c *ResultCache) Invalidate(_ context.Context, url string) (bool, error) {
	key := domain.CacheKey(url)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok, nil
}

func (c *ResultCache) ClearAll(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	return n, nil
}
