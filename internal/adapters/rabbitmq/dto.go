package rabbitmq

import (
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/shopspring/decimal"
)

// PriceAlertDTO - контракт сообщения для сервиса уведомлений
type PriceAlertDTO struct {
	Email       string                         `json:"email"`
	ProductID   int64                          `json:"product_id"`
	ProductName string                         `json:"product_name"`
	NewPrice    decimal.Decimal                `json:"new_price"`
	OldPrice    decimal.Decimal                `json:"old_price"`
	URL         string                         `json:"url"`
	Preferences domain.NotificationPreferences `json:"preferences"`
}

func toPriceAlertDTO(alert domain.PriceAlert) PriceAlertDTO {
	return PriceAlertDTO{
		Email:       alert.Email,
		ProductID:   alert.ProductID,
		ProductName: alert.ProductName,
		NewPrice:    alert.NewPrice,
		OldPrice:    alert.OldPrice,
		URL:         alert.URL,
		Preferences: alert.Preferences,
	}
}

// CheckRequestDTO - запрос на внеплановую проверку товара
type CheckRequestDTO struct {
	ProductID int64 `json:"product_id"`
}
