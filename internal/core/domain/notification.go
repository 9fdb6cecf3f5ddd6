package domain

import "github.com/shopspring/decimal"

// NotificationPreferences - настройки уведомлений владельца товара.
// Ядро их не интерпретирует, а передает сервису уведомлений как есть.
type NotificationPreferences struct {
	EmailNotifications    bool    `json:"email_notifications"`
	WebhookNotifications  bool    `json:"webhook_notifications"`
	WebhookURL            *string `json:"webhook_url,omitempty"`
	WebhookType           *string `json:"webhook_type,omitempty"`
	NotificationFrequency string  `json:"notification_frequency"`
	PriceDropAlerts       bool    `json:"price_drop_alerts"`
	AvailabilityAlerts    bool    `json:"availability_alerts"`
}

// DefaultNotificationPreferences - значения, когда у пользователя нет сохраненных настроек
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		EmailNotifications:    true,
		NotificationFrequency: "instant",
		PriceDropAlerts:       true,
		AvailabilityAlerts:    true,
	}
}

// AlertRecipient - адресат уведомления о товаре
type AlertRecipient struct {
	Email       string
	Preferences NotificationPreferences
}

// PriceAlert - запрос на уведомление о снижении цены
type PriceAlert struct {
	Email       string                  `json:"email"`
	ProductID   int64                   `json:"product_id"`
	ProductName string                  `json:"product_name"`
	NewPrice    decimal.Decimal         `json:"new_price"`
	OldPrice    decimal.Decimal         `json:"old_price"`
	URL         string                  `json:"url"`
	Preferences NotificationPreferences `json:"preferences"`
}
