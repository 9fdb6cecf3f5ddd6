package constants

// Обменники
const (
	ExchangeNotifications = "notifications_exchange"
	ExchangeScraper       = "scraper_exchange"
)

// Очереди
const (
	QueueProductCheckRequests = "product_check_requests"
)

// Ключи маршрутизации
const (
	RoutingKeyPriceAlert   = "price.alert"
	RoutingKeyProductCheck = "product.check"
)

// Инфраструктура ретраев очереди запросов проверки
const (
	CheckRequestsRetryExchange = "product_check_requests_retry"
	CheckRequestsRetryQueue    = "product_check_requests_wait"
	CheckRequestsRetryTTLms    = 30000
	CheckRequestsMaxRetries    = 3
	FinalDLXExchange           = "product_check_requests_final_dlx"
	FinalDLQ                   = "product_check_requests_final_dlq"
	FinalDLQRoutingKey         = "product.check.dlq"
)

// HeaderTraceID - заголовок сообщения с trace id
const HeaderTraceID = "x-trace-id"
