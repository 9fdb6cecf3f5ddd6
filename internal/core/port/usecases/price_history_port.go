package usecases_port

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

type PriceHistoryPort interface {
	Statistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error)
	History(ctx context.Context, productID int64, limit int) ([]domain.PriceHistoryEntry, error)
}
