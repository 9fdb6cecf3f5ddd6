package port

import (
	"context"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// SiteScraperPort - быстрый путь получения страницы по HTTP с извлечением данных.
// Возвращает domain.ErrProductUnavailable, *domain.HTTPStatusError,
// domain.ErrNetworkTimeout или domain.ErrExtractionFailed.
type SiteScraperPort interface {
	Scrape(ctx context.Context, url string, site domain.SiteTag, identity domain.Identity) (*domain.ScrapedProduct, error)
}

// BrowserScraperPort - резервный путь через headless-браузер
type BrowserScraperPort interface {
	Scrape(ctx context.Context, url string, site domain.SiteTag, identity domain.Identity) (*domain.ScrapedProduct, error)
	Close() error
}

// IdentityProviderPort выдает заголовки и прокси для очередного запроса
type IdentityProviderPort interface {
	Next(site domain.SiteTag, full bool) domain.Identity
}

// SiteDetectorPort определяет магазин по URL
type SiteDetectorPort interface {
	Detect(rawURL string) domain.SiteTag
}

// CircuitStorePort - общее хранилище состояний автоматов, ключ - сайт
type CircuitStorePort interface {
	Load(ctx context.Context, site domain.SiteTag) (*domain.CircuitState, error)
	Save(ctx context.Context, site domain.SiteTag, state domain.CircuitState) error
	Delete(ctx context.Context, site domain.SiteTag) error
	// AcquireProbe выдает единственную пробную аренду в состоянии HALF_OPEN
	AcquireProbe(ctx context.Context, site domain.SiteTag, lease time.Duration) (bool, error)
	ReleaseProbe(ctx context.Context, site domain.SiteTag) error
}

// ResultCachePort - кэш результатов парсинга по URL
type ResultCachePort interface {
	Get(ctx context.Context, url string) (*domain.CachedResult, error)
	Set(ctx context.Context, url string, data domain.ScrapedProduct, ttl time.Duration) error
	Invalidate(ctx context.Context, url string) (bool, error)
	ClearAll(ctx context.Context) (int, error)
}

// PriceAlertPort передает запрос на уведомление в сервис уведомлений
type PriceAlertPort interface {
	SendPriceAlert(ctx context.Context, alert domain.PriceAlert) error
}

// EventListenerPort - входящий поток событий
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}

// CircuitBreakerPort - шлюз перед сетевыми попытками к сайту
type CircuitBreakerPort interface {
	Allow(ctx context.Context, site domain.SiteTag) error
	RecordSuccess(ctx context.Context, site domain.SiteTag)
	RecordFailure(ctx context.Context, site domain.SiteTag)
	Reset(ctx context.Context, site domain.SiteTag) error
	State(ctx context.Context, site domain.SiteTag) (domain.CircuitState, error)
}
