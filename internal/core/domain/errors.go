package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNetworkTimeout     = errors.New("network timeout")
	ErrExtractionFailed   = errors.New("extraction returned no data")
	ErrProductUnavailable = errors.New("product is no longer available")
	ErrCircuitOpen        = errors.New("circuit breaker is open")
	ErrBrowserAutomation  = errors.New("browser automation failed")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidBucket      = errors.New("invalid frequency bucket")
	ErrUnknownSite        = errors.New("unknown site")
)

// ErrFeatureDisabled - автомат или кэш выключены в конфигурации
var ErrFeatureDisabled = errors.New("feature is disabled")

// HTTPStatusError - ответ сайта с кодом 4xx/5xx
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d for %s", e.StatusCode, e.URL)
}

func (e *HTTPStatusError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *HTTPStatusError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsGone - страница удалена или не найдена: это признак недоступности товара, а не сбой
func (e *HTTPStatusError) IsGone() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

func (e *HTTPStatusError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// AsHTTPStatus извлекает HTTPStatusError из цепочки ошибок
func AsHTTPStatus(err error) (*HTTPStatusError, bool) {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// ValidBucket проверяет, что частота проверки входит в допустимые корзины
func ValidBucket(hours int) bool {
	return hours == 6 || hours == 12 || hours == 24
}
