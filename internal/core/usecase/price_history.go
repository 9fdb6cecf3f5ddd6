package usecase

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
)

const maxHistoryLimit = 500

// PriceHistoryUseCase - чтение истории и сводки по цене товара
type PriceHistoryUseCase struct {
	history port.PriceHistoryPort
}

func NewPriceHistoryUseCase(history port.PriceHistoryPort) *PriceHistoryUseCase {
	return &PriceHistoryUseCase{history: history}
}

func (uc *PriceHistoryUseCase) Statistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error) {
	return uc.history.Statistics(ctx, productID)
}

func (uc *PriceHistoryUseCase) History(ctx context.Context, productID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return uc.history.History(ctx, productID, limit)
}
