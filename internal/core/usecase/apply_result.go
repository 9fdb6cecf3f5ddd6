package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/shopspring/decimal"
)

// ApplyResultUseCase переносит исход конвейера в товар и историю цен
// и передает уведомление о снижении цены.
type ApplyResultUseCase struct {
	products port.ProductRepositoryPort
	history  port.PriceHistoryPort
	alerts   port.PriceAlertPort
	now      func() time.Time
}

func NewApplyResultUseCase(
	products port.ProductRepositoryPort,
	history port.PriceHistoryPort,
	alerts port.PriceAlertPort,
) *ApplyResultUseCase {
	return &ApplyResultUseCase{
		products: products,
		history:  history,
		alerts:   alerts,
		now:      time.Now,
	}
}

// Execute сохраняет итог проверки. Неуспешный исход ничего не меняет.
// Возвращает true, если уведомление было отправлено.
func (uc *ApplyResultUseCase) Execute(ctx context.Context, product *domain.Product, outcome domain.ScrapeOutcome) (bool, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "ApplyResult",
		"product_id": product.ID,
		"outcome":    outcome.Kind,
	})
	now := uc.now().UTC()

	switch outcome.Kind {
	case domain.OutcomeSuccess:
		return uc.applySuccess(ctx, ucLogger, product, *outcome.Data, now)

	case domain.OutcomeUnavailable:
		if product.MarkUnavailable(now) {
			ucLogger.Warn("Product became unavailable", nil)
		}
		product.Touch(now)
		if err := uc.products.SaveCheck(ctx, product, nil); err != nil {
			return false, fmt.Errorf("failed to save unavailable product %d: %w", product.ID, err)
		}
		return false, nil

	default:
		ucLogger.Debug("Failed outcome, product left unchanged", nil)
		return false, nil
	}
}

func (uc *ApplyResultUseCase) applySuccess(ctx context.Context, ucLogger port.LoggerPort, product *domain.Product, data domain.ScrapedProduct, now time.Time) (bool, error) {
	oldPrice := product.CurrentPrice
	newPrice := data.Price

	if product.MarkAvailable() {
		ucLogger.Info("Product is available again", nil)
	}
	product.CurrentPrice = newPrice
	product.Touch(now)

	latest, err := uc.history.LatestPrice(ctx, product.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read latest price for %d: %w", product.ID, err)
	}
	var historyPrice *decimal.Decimal
	if latest == nil || !latest.Equal(newPrice) {
		historyPrice = &newPrice
	}

	if err := uc.products.SaveCheck(ctx, product, historyPrice); err != nil {
		return false, fmt.Errorf("failed to save product %d: %w", product.ID, err)
	}
	ucLogger.Debug("Product check saved", port.Fields{
		"old_price":        oldPrice.String(),
		"new_price":        newPrice.String(),
		"history_appended": historyPrice != nil,
	})

	if !domain.ShouldAlert(oldPrice, newPrice, product.TargetPrice) {
		return false, nil
	}
	return uc.sendAlert(ctx, ucLogger, product, oldPrice, newPrice)
}

// sendAlert - ошибки уведомления логируются, проверка товара уже сохранена
func (uc *ApplyResultUseCase) sendAlert(ctx context.Context, ucLogger port.LoggerPort, product *domain.Product, oldPrice, newPrice decimal.Decimal) (bool, error) {
	recipient, err := uc.products.FindAlertRecipient(ctx, product.ID)
	if err != nil {
		ucLogger.Error("Failed to find alert recipient", err, nil)
		return false, nil
	}

	alert := domain.PriceAlert{
		Email:       recipient.Email,
		ProductID:   product.ID,
		ProductName: product.Name,
		NewPrice:    newPrice,
		OldPrice:    oldPrice,
		URL:         product.URL,
		Preferences: recipient.Preferences,
	}
	if err := uc.alerts.SendPriceAlert(ctx, alert); err != nil {
		ucLogger.Error("Failed to send price alert", err, nil)
		return false, nil
	}

	ucLogger.Info("Price alert sent", port.Fields{"old_price": oldPrice.String(), "new_price": newPrice.String()})
	return true, nil
}
