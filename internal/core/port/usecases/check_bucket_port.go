package usecases_port

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

type CheckBucketPort interface {
	Execute(ctx context.Context, bucketHours int) (domain.RunReport, error)
}
