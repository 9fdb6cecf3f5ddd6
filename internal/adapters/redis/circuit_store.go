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

// CircuitStoreAdapter хранит состояния автоматов в Redis, общие для всех процессов.
// Состояние сайта лежит JSON-документом под ключом circuit_breaker:<site>.
type CircuitStoreAdapter struct {
	client redis.UniversalClient
}

func NewCircuitStoreAdapter(client redis.UniversalClient) *CircuitStoreAdapter {
	return &CircuitStoreAdapter{client: client}
}

func circuitKey(site domain.SiteTag) string {
	return constants.RedisKeyCircuitBreaker + string(site)
}

func probeKey(site domain.SiteTag) string {
	return constants.RedisKeyCircuitProbe + string(site)
}

func (a *CircuitStoreAdapter) Load(ctx context.Context, site domain.SiteTag) (*domain.CircuitState, error) {
	raw, err := a.client.Get(ctx, circuitKey(site)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get circuit state: %w", err)
	}

	var state domain.CircuitState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode circuit state for %s: %w", site, err)
	}
	return &state, nil
}

func (a *CircuitStoreAdapter) Save(ctx context.Context, site domain.SiteTag, state domain.CircuitState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode circuit state: %w", err)
	}
	if err := a.client.Set(ctx, circuitKey(site), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set circuit state: %w", err)
	}
	return nil
}

func (a *CircuitStoreAdapter) Delete(ctx context.Context, site domain.SiteTag) error {
	if err := a.client.Del(ctx, circuitKey(site)).Err(); err != nil {
		return fmt.Errorf("redis delete circuit state: %w", err)
	}
	return nil
}

// AcquireProbe - SET NX PX: аренду получает только один процесс до ее истечения
func (a *CircuitStoreAdapter) AcquireProbe(ctx context.Context, site domain.SiteTag, lease time.Duration) (bool, error) {
	ok, err := a.client.SetNX(ctx, probeKey(site), time.Now().UTC().Format(time.RFC3339), lease).Result()
	if err != nil {
		return false, fmt.Errorf("redis acquire probe: %w", err)
	}
	return ok, nil
}

func (a *CircuitStoreAdapter) ReleaseProbe(ctx context.Context, site domain.SiteTag) error {
	if err := a.client.Del(ctx, probeKey(site)).Err(); err != nil {
		return fmt.Errorf("redis release probe: %w", err)
	}
	return nil
}
