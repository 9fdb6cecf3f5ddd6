package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// Decision - что делать после неудачной попытки
type Decision int

const (
	// DecisionRetry - попытка может быть повторена
	DecisionRetry Decision = iota
	// DecisionUnavailable - товар снят с продажи, повторять нельзя
	DecisionUnavailable
	// DecisionEscalate - бот-защита или пустая разметка, нужен браузер
	DecisionEscalate
	// DecisionFail - окончательная ошибка
	DecisionFail
)

// RetryPolicy описывает число попыток и паузы между ними
type RetryPolicy struct {
	MaxAttempts            int
	BaseDelay              time.Duration
	ForbiddenBackoffFactor float64
	// Jitter возвращает случайную добавку в [0, max). Подменяется в тестах.
	Jitter func(max time.Duration) time.Duration
	// Sleep ждет d или отмены контекста. Подменяется в тестах.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(maxAttempts int, baseDelay time.Duration, forbiddenFactor float64) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if forbiddenFactor < 1 {
		forbiddenFactor = 1
	}
	return RetryPolicy{
		MaxAttempts:            maxAttempts,
		BaseDelay:              baseDelay,
		ForbiddenBackoffFactor: forbiddenFactor,
		Jitter:                 randomJitter,
		Sleep:                  SleepContext,
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// SleepContext ждет d, прерываясь при отмене контекста
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay - пауза перед попыткой attempt (нумерация с 1). Перед первой попыткой паузы нет.
// prevErr - ошибка предыдущей попытки: после 403 пауза умножается на ForbiddenBackoffFactor.
func (p RetryPolicy) Delay(attempt int, prevErr error) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay << (attempt - 2)
	if p.Jitter != nil {
		delay += p.Jitter(p.BaseDelay)
	}
	if statusErr, ok := domain.AsHTTPStatus(prevErr); ok && statusErr.IsForbidden() {
		delay = time.Duration(float64(delay) * p.ForbiddenBackoffFactor)
	}
	return delay
}

// Wait выдерживает паузу перед попыткой attempt
func (p RetryPolicy) Wait(ctx context.Context, attempt int, prevErr error) error {
	d := p.Delay(attempt, prevErr)
	if d <= 0 {
		return ctx.Err()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return sleep(ctx, d)
}

// Classify относит ошибку попытки к одному из решений.
// Для повторяемых ошибок exhausted=true превращает решение в эскалацию или отказ.
func Classify(err error, exhausted bool) Decision {
	if errors.Is(err, domain.ErrProductUnavailable) {
		return DecisionUnavailable
	}
	if statusErr, ok := domain.AsHTTPStatus(err); ok && statusErr.IsGone() {
		return DecisionUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return DecisionFail
	}
	if !exhausted {
		return DecisionRetry
	}
	if Escalates(err) {
		return DecisionEscalate
	}
	return DecisionFail
}

// Escalates - последняя ошибка означает бот-защиту (403) или пустое извлечение
func Escalates(err error) bool {
	if errors.Is(err, domain.ErrExtractionFailed) {
		return true
	}
	statusErr, ok := domain.AsHTTPStatus(err)
	return ok && statusErr.IsForbidden()
}
