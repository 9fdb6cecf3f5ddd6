package usecases_port

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// ScrapeProductPort - конвейер получения цены по URL
type ScrapeProductPort interface {
	Execute(ctx context.Context, url string, productID *int64) domain.ScrapeOutcome
}
