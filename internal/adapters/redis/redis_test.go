package redis_adapter

import (
	"context"
	"testing"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCircuitStoreAdapter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewCircuitStoreAdapter(client)

	t.Run("missing state", func(t *testing.T) {
		state, err := store.Load(ctx, domain.SiteFnac)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("save load delete", func(t *testing.T) {
		failedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		want := domain.CircuitState{Status: domain.CircuitOpen, FailureCount: 5, LastFailureAt: &failedAt}
		require.NoError(t, store.Save(ctx, domain.SiteAmazon, want))
		assert.True(t, mr.Exists("circuit_breaker:amazon"))

		got, err := store.Load(ctx, domain.SiteAmazon)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.CircuitOpen, got.Status)
		assert.Equal(t, 5, got.FailureCount)
		assert.True(t, failedAt.Equal(*got.LastFailureAt))

		require.NoError(t, store.Delete(ctx, domain.SiteAmazon))
		got, err = store.Load(ctx, domain.SiteAmazon)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("probe lease", func(t *testing.T) {
		ok, err := store.AcquireProbe(ctx, domain.SiteDarty, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.AcquireProbe(ctx, domain.SiteDarty, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		mr.FastForward(2 * time.Minute)
		ok, err = store.AcquireProbe(ctx, domain.SiteDarty, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, store.ReleaseProbe(ctx, domain.SiteDarty))
		ok, err = store.AcquireProbe(ctx, domain.SiteDarty, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestResultCacheAdapter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, client := newTestClient(t)
	cache := NewResultCacheAdapter(client, time.Hour)
	data := domain.ScrapedProduct{Name: "Casque", Price: decimal.RequireFromString("149.90")}

	t.Run("miss", func(t *testing.T) {
		got, err := cache.Get(ctx, "https://www.fnac.com/none")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set get expire", func(t *testing.T) {
		url := "https://www.fnac.com/a1"
		require.NoError(t, cache.Set(ctx, url, data, 0))
		assert.Equal(t, time.Hour, mr.TTL(domain.CacheKey(url)))

		got, err := cache.Get(ctx, url)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Casque", got.Data.Name)
		assert.True(t, data.Price.Equal(got.Data.Price))
		assert.False(t, got.CachedAt.IsZero())

		mr.FastForward(time.Hour + time.Second)
		got, err = cache.Get(ctx, url)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("invalidate", func(t *testing.T) {
		url := "https://www.darty.com/p2"
		require.NoError(t, cache.Set(ctx, url, data, time.Minute))

		removed, err := cache.Invalidate(ctx, url)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = cache.Invalidate(ctx, url)
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestResultCacheAdapter_ClearAllKeepsOtherKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, client := newTestClient(t)
	cache := NewResultCacheAdapter(client, time.Hour)
	data := domain.ScrapedProduct{Name: "Tv", Price: decimal.NewFromInt(499)}

	for _, url := range []string{"https://a.fr/1", "https://a.fr/2", "https://a.fr/3"} {
		require.NoError(t, cache.Set(ctx, url, data, 0))
	}
	require.NoError(t, mr.Set("circuit_breaker:amazon", "{}"))

	n, err := cache.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists("circuit_breaker:amazon"))
}
