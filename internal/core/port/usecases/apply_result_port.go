package usecases_port

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// ApplyResultPort применяет исход конвейера к товару. Возвращает true, если отправлено уведомление.
type ApplyResultPort interface {
	Execute(ctx context.Context, product *domain.Product, outcome domain.ScrapeOutcome) (bool, error)
}
