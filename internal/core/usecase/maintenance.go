package usecase

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
)

// MaintenanceUseCase - ручной сброс автоматов и очистка кэша
type MaintenanceUseCase struct {
	breaker port.CircuitBreakerPort
	cache   port.ResultCachePort
}

func NewMaintenanceUseCase(breaker port.CircuitBreakerPort, cache port.ResultCachePort) *MaintenanceUseCase {
	return &MaintenanceUseCase{breaker: breaker, cache: cache}
}

func (uc *MaintenanceUseCase) CircuitState(ctx context.Context, site string) (domain.SiteTag, domain.CircuitState, error) {
	tag, err := domain.ParseSiteTag(site)
	if err != nil {
		return tag, domain.CircuitState{}, err
	}
	if uc.breaker == nil {
		return tag, domain.CircuitState{}, domain.ErrFeatureDisabled
	}
	state, err := uc.breaker.State(ctx, tag)
	return tag, state, err
}

func (uc *MaintenanceUseCase) ResetCircuit(ctx context.Context, site string) (domain.SiteTag, error) {
	tag, err := domain.ParseSiteTag(site)
	if err != nil {
		return tag, err
	}
	if uc.breaker == nil {
		return tag, domain.ErrFeatureDisabled
	}
	if err := uc.breaker.Reset(ctx, tag); err != nil {
		return tag, err
	}
	contextkeys.LoggerFromContext(ctx).Info("Circuit reset manually", port.Fields{"site": tag})
	return tag, nil
}

func (uc *MaintenanceUseCase) InvalidateCache(ctx context.Context, url string) (bool, error) {
	if uc.cache == nil {
		return false, domain.ErrFeatureDisabled
	}
	return uc.cache.Invalidate(ctx, url)
}

func (uc *MaintenanceUseCase) ClearCache(ctx context.Context) (int, error) {
	if uc.cache == nil {
		return 0, domain.ErrFeatureDisabled
	}
	n, err := uc.cache.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	contextkeys.LoggerFromContext(ctx).Info("Cache cleared", port.Fields{"deleted": n})
	return n, nil
}
