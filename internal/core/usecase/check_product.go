package usecase

import (
	"context"
	"fmt"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
)

// CheckProductUseCase - внеплановая проверка одного товара тем же конвейером
type CheckProductUseCase struct {
	products port.ProductRepositoryPort
	scraper  usecases_port.ScrapeProductPort
	applier  usecases_port.ApplyResultPort
}

func NewCheckProductUseCase(
	products port.ProductRepositoryPort,
	scraper usecases_port.ScrapeProductPort,
	applier usecases_port.ApplyResultPort,
) *CheckProductUseCase {
	return &CheckProductUseCase{products: products, scraper: scraper, applier: applier}
}

func (uc *CheckProductUseCase) Execute(ctx context.Context, productID int64) (*domain.CheckResult, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "CheckProduct",
		"product_id": productID,
	})
	ctx = contextkeys.ContextWithLogger(ctx, ucLogger)

	product, err := uc.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	outcome := uc.scraper.Execute(ctx, product.URL, &product.ID)
	alerted, err := uc.applier.Execute(ctx, product, outcome)
	if err != nil {
		ucLogger.Error("Failed to apply check result", err, nil)
		return nil, err
	}

	result := domain.NewCheckResult(product.ID, outcome, alerted)
	ucLogger.Info("Product checked", port.Fields{"status": result.Status, "alerted": alerted})
	return &result, nil
}
