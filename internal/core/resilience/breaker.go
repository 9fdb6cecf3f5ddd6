package resilience

import (
	"context"
	"time"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
)

// BreakerConfig - пороги автомата. SiteThresholds переопределяют значения по умолчанию.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
	SiteThresholds   map[domain.SiteTag]domain.SiteThreshold
}

// CircuitBreaker - автомат CLOSED -> OPEN -> HALF_OPEN по каждому сайту.
// Состояние живет во внешнем хранилище и разделяется между процессами.
// Ошибки хранилища не блокируют парсинг: автомат в этом случае пропускает запрос.
type CircuitBreaker struct {
	store  port.CircuitStorePort
	cfg    BreakerConfig
	logger port.LoggerPort
	now    func() time.Time
}

func NewCircuitBreaker(store port.CircuitStorePort, cfg BreakerConfig, logger port.LoggerPort) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if logger == nil {
		logger = contextkeys.NoopLogger()
	}
	return &CircuitBreaker{
		store:  store,
		cfg:    cfg,
		logger: logger.WithFields(port.Fields{"component": "circuit_breaker"}),
		now:    time.Now,
	}
}

// WithClock подменяет часы автомата
func (b *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	b.now = now
	return b
}

// Threshold возвращает пороги для сайта
func (b *CircuitBreaker) Threshold(site domain.SiteTag) domain.SiteThreshold {
	if t, ok := b.cfg.SiteThresholds[site]; ok {
		return t
	}
	return domain.SiteThreshold{
		FailureThreshold: b.cfg.FailureThreshold,
		RecoveryTimeout:  b.cfg.RecoveryTimeout,
	}
}

func (b *CircuitBreaker) load(ctx context.Context, site domain.SiteTag) (domain.CircuitState, error) {
	state, err := b.store.Load(ctx, site)
	if err != nil {
		return domain.CircuitState{Status: domain.CircuitClosed}, err
	}
	if state == nil {
		return domain.CircuitState{Status: domain.CircuitClosed}, nil
	}
	return *state, nil
}

// Allow решает, можно ли выполнять запрос к сайту.
// Возвращает domain.ErrCircuitOpen, если сетевую попытку делать нельзя.
func (b *CircuitBreaker) Allow(ctx context.Context, site domain.SiteTag) error {
	logger := b.logger.WithFields(port.Fields{"site": site})

	state, err := b.load(ctx, site)
	if err != nil {
		logger.Error("Failed to load circuit state, allowing request", err, nil)
		return nil
	}

	switch state.Status {
	case domain.CircuitOpen:
		threshold := b.Threshold(site)
		if state.LastFailureAt != nil && b.now().Before(state.LastFailureAt.Add(threshold.RecoveryTimeout)) {
			return domain.ErrCircuitOpen
		}
		acquired, err := b.store.AcquireProbe(ctx, site, threshold.RecoveryTimeout)
		if err != nil {
			logger.Error("Failed to acquire probe lease, allowing request", err, nil)
			return nil
		}
		if !acquired {
			return domain.ErrCircuitOpen
		}
		state.Status = domain.CircuitHalfOpen
		state.SuccessCount = 0
		if err := b.store.Save(ctx, site, state); err != nil {
			logger.Error("Failed to save half-open state", err, nil)
		}
		logger.Info("Circuit half-open, probing", nil)
		return nil

	case domain.CircuitHalfOpen:
		acquired, err := b.store.AcquireProbe(ctx, site, b.Threshold(site).RecoveryTimeout)
		if err != nil {
			logger.Error("Failed to acquire probe lease, allowing request", err, nil)
			return nil
		}
		if !acquired {
			return domain.ErrCircuitOpen
		}
		return nil

	default:
		return nil
	}
}

// RecordSuccess учитывает успешный запрос
func (b *CircuitBreaker) RecordSuccess(ctx context.Context, site domain.SiteTag) {
	logger := b.logger.WithFields(port.Fields{"site": site})

	state, err := b.load(ctx, site)
	if err != nil {
		logger.Error("Failed to load circuit state on success", err, nil)
		return
	}

	switch state.Status {
	case domain.CircuitHalfOpen:
		state.SuccessCount++
		if state.SuccessCount >= b.cfg.SuccessThreshold {
			if err := b.store.Delete(ctx, site); err != nil {
				logger.Error("Failed to close circuit", err, nil)
			}
			logger.Info("Circuit closed after successful probes", port.Fields{"success_count": state.SuccessCount})
		} else if err := b.store.Save(ctx, site, state); err != nil {
			logger.Error("Failed to save circuit state", err, nil)
		}
		if err := b.store.ReleaseProbe(ctx, site); err != nil {
			logger.Error("Failed to release probe lease", err, nil)
		}

	case domain.CircuitClosed:
		if state.FailureCount == 0 {
			return
		}
		state.FailureCount = 0
		if err := b.store.Save(ctx, site, state); err != nil {
			logger.Error("Failed to reset failure counter", err, nil)
		}
	}
}

// RecordFailure учитывает неудачный запрос
func (b *CircuitBreaker) RecordFailure(ctx context.Context, site domain.SiteTag) {
	logger := b.logger.WithFields(port.Fields{"site": site})

	state, err := b.load(ctx, site)
	if err != nil {
		logger.Error("Failed to load circuit state on failure", err, nil)
		return
	}

	now := b.now().UTC()
	state.FailureCount++
	state.LastFailureAt = &now

	switch state.Status {
	case domain.CircuitHalfOpen:
		state.Status = domain.CircuitOpen
		state.SuccessCount = 0
		logger.Warn("Probe failed, circuit reopened", nil)
		if err := b.store.ReleaseProbe(ctx, site); err != nil {
			logger.Error("Failed to release probe lease", err, nil)
		}
	case domain.CircuitClosed:
		if threshold := b.Threshold(site); state.FailureCount >= threshold.FailureThreshold {
			state.Status = domain.CircuitOpen
			logger.Warn("Circuit opened", port.Fields{
				"failure_count":    state.FailureCount,
				"recovery_timeout": threshold.RecoveryTimeout.String(),
			})
		}
	}

	if err := b.store.Save(ctx, site, state); err != nil {
		logger.Error("Failed to save circuit state", err, nil)
	}
}

// Reset очищает все состояние сайта
func (b *CircuitBreaker) Reset(ctx context.Context, site domain.SiteTag) error {
	if err := b.store.Delete(ctx, site); err != nil {
		return err
	}
	if err := b.store.ReleaseProbe(ctx, site); err != nil {
		return err
	}
	b.logger.Info("Circuit reset", port.Fields{"site": site})
	return nil
}

// State возвращает текущее состояние сайта
func (b *CircuitBreaker) State(ctx context.Context, site domain.SiteTag) (domain.CircuitState, error) {
	return b.load(ctx, site)
}
