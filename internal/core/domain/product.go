package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product - отслеживаемый товар. Владельцем записи является CRUD-сервис товаров,
// ядро читает поля выборки и пишет цену, доступность и время проверки.
type Product struct {
	ID                  int64
	UserID              int64
	Name                string
	URL                 string
	CurrentPrice        decimal.Decimal
	TargetPrice         decimal.Decimal
	CheckFrequencyHours int
	LastCheckedAt       *time.Time
	IsAvailable         bool
	UnavailableSince    *time.Time
}

// MarkAvailable возвращает товар в статус доступного.
// Возвращает true, если товар до этого был недоступен.
func (p *Product) MarkAvailable() bool {
	if p.IsAvailable {
		return false
	}
	p.IsAvailable = true
	p.UnavailableSince = nil
	return true
}

// MarkUnavailable переводит товар в статус недоступного.
// unavailable_since выставляется только на переходе, повторная отметка его не сдвигает.
func (p *Product) MarkUnavailable(now time.Time) bool {
	if !p.IsAvailable && p.UnavailableSince != nil {
		return false
	}
	p.IsAvailable = false
	t := now
	p.UnavailableSince = &t
	return true
}

// Touch фиксирует время последней проверки
func (p *Product) Touch(now time.Time) {
	t := now
	p.LastCheckedAt = &t
}

// ShouldAlert решает, нужно ли отправлять уведомление о снижении цены.
// Уведомление отправляется только при пересечении порога: прежняя цена была
// не ниже целевой, новая снизилась и оказалась не выше целевой.
// Дальнейшее снижение уже ниже порога уведомлений не вызывает.
func ShouldAlert(oldPrice, newPrice, targetPrice decimal.Decimal) bool {
	return oldPrice.GreaterThanOrEqual(targetPrice) &&
		newPrice.LessThanOrEqual(targetPrice) &&
		newPrice.LessThan(oldPrice)
}

// PriceHistoryEntry - неизменяемая запись истории цены
type PriceHistoryEntry struct {
	ProductID  int64
	Price      decimal.Decimal
	RecordedAt time.Time
}

// PriceStatistics - сводка по истории цены товара
type PriceStatistics struct {
	ProductID        int64            `json:"product_id"`
	CurrentPrice     decimal.Decimal  `json:"current_price"`
	LowestPrice      decimal.Decimal  `json:"lowest_price"`
	HighestPrice     decimal.Decimal  `json:"highest_price"`
	AveragePrice     decimal.Decimal  `json:"average_price"`
	ChangePercentage *decimal.Decimal `json:"price_change_percentage"`
	TotalRecords     int64            `json:"total_records"`
}

// PriceAggregates - агрегаты истории цен, как их возвращает хранилище
type PriceAggregates struct {
	Lowest  decimal.Decimal
	Highest decimal.Decimal
	Average decimal.Decimal
	// First - самая ранняя запись, nil без истории
	First *decimal.Decimal
	Total int64
}

var hundred = decimal.NewFromInt(100)

// NewPriceStatistics собирает сводку. Без истории все показатели равны текущей цене,
// а изменение равно нулю. Изменение считается от самой ранней записи к текущей цене.
func NewPriceStatistics(productID int64, current decimal.Decimal, agg PriceAggregates) PriceStatistics {
	stats := PriceStatistics{
		ProductID:    productID,
		CurrentPrice: current,
		TotalRecords: agg.Total,
	}
	if agg.Total == 0 {
		zero := decimal.Zero
		stats.LowestPrice = current
		stats.HighestPrice = current
		stats.AveragePrice = current
		stats.ChangePercentage = &zero
		return stats
	}

	stats.LowestPrice = agg.Lowest
	stats.HighestPrice = agg.Highest
	stats.AveragePrice = agg.Average.Round(2)
	if agg.First != nil && agg.First.IsPositive() {
		change := current.Sub(*agg.First).Div(*agg.First).Mul(hundred).Round(2)
		stats.ChangePercentage = &change
	}
	return stats
}
