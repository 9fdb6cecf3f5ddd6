package usecases_port

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

type CheckProductPort interface {
	Execute(ctx context.Context, productID int64) (*domain.CheckResult, error)
}
