package port

import (
	"context"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ProductRepositoryPort - хранилище товаров.
// Все запросы, кроме FindByID, обязаны ограничиваться выборкой по частоте проверки.
type ProductRepositoryPort interface {
	// FindDue возвращает товары корзины bucketHours, не проверявшиеся с момента dueBefore
	// (включая никогда не проверявшиеся)
	FindDue(ctx context.Context, bucketHours int, dueBefore time.Time) ([]domain.Product, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	// SaveCheck атомарно сохраняет итог проверки товара и, если newHistoryPrice не nil,
	// добавляет запись в историю цен
	SaveCheck(ctx context.Context, product *domain.Product, newHistoryPrice *decimal.Decimal) error
	// FindAlertRecipient возвращает email владельца товара и его настройки уведомлений
	FindAlertRecipient(ctx context.Context, productID int64) (*domain.AlertRecipient, error)
}

// PriceHistoryPort - чтение истории цен
type PriceHistoryPort interface {
	// LatestPrice возвращает последнюю записанную цену или nil, если истории нет
	LatestPrice(ctx context.Context, productID int64) (*decimal.Decimal, error)
	History(ctx context.Context, productID int64, limit int) ([]domain.PriceHistoryEntry, error)
	Statistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error)
}

// ScrapingStatsPort - запись телеметрии
type ScrapingStatsPort interface {
	Record(ctx context.Context, stat domain.ScrapingStat) error
}
