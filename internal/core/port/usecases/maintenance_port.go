package usecases_port

import (
	"context"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// MaintenancePort - ручное управление автоматами и кэшем
type MaintenancePort interface {
	CircuitState(ctx context.Context, site string) (domain.SiteTag, domain.CircuitState, error)
	ResetCircuit(ctx context.Context, site string) (domain.SiteTag, error)
	InvalidateCache(ctx context.Context, url string) (bool, error)
	ClearCache(ctx context.Context) (int, error)
}
