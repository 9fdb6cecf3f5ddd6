package redis_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// ResultCacheAdapter - кэш результатов парсинга в Redis с истечением по TTL
type ResultCacheAdapter struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
	now        func() time.Time
}

func NewResultCacheAdapter(client redis.UniversalClient, defaultTTL time.Duration) *ResultCacheAdapter {
	if defaultTTL <= 0 {
		defaultTTL = constants.DefaultCacheTTL
	}
	return &ResultCacheAdapter{client: client, defaultTTL: defaultTTL, now: time.Now}
}

func (a *ResultCacheAdapter) Get(ctx context.Context, url string) (*domain.CachedResult, error) {
	raw, err := a.client.Get(ctx, domain.CacheKey(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cached result: %w", err)
	}

	var cached domain.CachedResult
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &cached, nil
}

func (a *ResultCacheAdapter) Set(ctx context.Context, url string, data domain.ScrapedProduct, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	raw, err := json.Marshal(domain.CachedResult{Data: data, CachedAt: a.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	if err := a.client.Set(ctx, domain.CacheKey(url), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cached result: %w", err)
	}
	return nil
}

func (a *ResultCacheAdapter) Invalidate(ctx context.Context, url string) (bool, error) {
	n, err := a.client.Del(ctx, domain.CacheKey(url)).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete cached result: %w", err)
	}
	return n > 0, nil
}

// ClearAll удаляет все записи кэша, обходя ключи через SCAN
func (a *ResultCacheAdapter) ClearAll(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := a.client.Scan(ctx, cursor, domain.CacheKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := a.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis delete cache keys: %w", err)
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
