package constants

import "time"

// Значения по умолчанию конвейера парсинга
const (
	DefaultMaxRetries             = 3
	DefaultRetryBaseDelay         = 2 * time.Second
	DefaultForbiddenBackoffFactor = 3.0
	DefaultRequestTimeout         = 30 * time.Second
	DefaultCacheTTL               = time.Hour

	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultSuccessThreshold = 2

	DefaultBatchSize      = 50
	DefaultWorkerPoolSize = 5

	DefaultBrowserAttempts = 2
	BrowserRetryMinDelay   = 2 * time.Second
	BrowserRetryMaxDelay   = 5 * time.Second
)

// DefaultBuckets - корзины частоты проверки в часах
var DefaultBuckets = []int{6, 12, 24}
