package sitefetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Analogium/PriceWatch/internal/adapters/extractor"
	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Config HTTP-парсера
type Config struct {
	RequestTimeout time.Duration
	// Parallelism - одновременных запросов к одному хосту, разные хосты друг друга не ждут
	Parallelism int
	// RandomDelay - случайная пауза после запроса к хосту, слот хоста на это время занят
	RandomDelay time.Duration
	// RatePerSecond - запросов в секунду к одному сайту, 0 - без ограничения
	RatePerSecond float64
}

// ProxyBanner исключает прокси из ротации, когда сайт отвечает через него 403
type ProxyBanner interface {
	RemoveProxy(proxy string) bool
}

// collectorKey - у каждой пары прокси и хоста свой родительский коллектор со своим правилом лимита
type collectorKey struct {
	proxy string
	host  string
}

// Adapter получает страницу через colly и извлекает данные товара.
// Реализует port.SiteScraperPort.
type Adapter struct {
	cfg      Config
	registry *extractor.Registry
	limiter  *SiteLimiter
	banner   ProxyBanner

	mu sync.Mutex
	// транспорт и правила лимитов у клонов общие с родителем
	collectors map[collectorKey]*colly.Collector
}

// NewAdapter создает парсер. banner может быть nil, тогда прокси не исключаются.
func NewAdapter(cfg Config, registry *extractor.Registry, banner ProxyBanner) (*Adapter, error) {
	if registry == nil {
		return nil, fmt.Errorf("sitefetcher: extractor registry is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 2
	}
	return &Adapter{
		cfg:        cfg,
		registry:   registry,
		limiter:    NewSiteLimiter(cfg.RatePerSecond, 1),
		banner:     banner,
		collectors: make(map[collectorKey]*colly.Collector),
	}, nil
}

// collectorFor возвращает родительский коллектор для прокси и хоста.
// Правило colly держит один семафор на все совпавшие домены, поэтому у каждого хоста свой коллектор.
func (a *Adapter) collectorFor(proxy, host string) (*colly.Collector, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := collectorKey{proxy: proxy, host: host}
	if c, ok := a.collectors[key]; ok {
		return c, nil
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(a.cfg.RequestTimeout)
	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: a.cfg.Parallelism,
		RandomDelay: a.cfg.RandomDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("sitefetcher: failed to set limit rule: %w", err)
	}
	if proxy != "" {
		if err := c.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("sitefetcher: invalid proxy %q: %w", proxy, err)
		}
	}
	a.collectors[key] = c
	return c, nil
}

// banProxy исключает прокси из ротации и забывает его коллекторы
func (a *Adapter) banProxy(logger port.LoggerPort, proxy string) {
	if a.banner == nil || proxy == "" {
		return
	}
	if !a.banner.RemoveProxy(proxy) {
		return
	}
	a.mu.Lock()
	for key := range a.collectors {
		if key.proxy == proxy {
			delete(a.collectors, key)
		}
	}
	a.mu.Unlock()
	logger.Warn("Proxy rejected by site, removed from rotation", port.Fields{"proxy": proxy})
}

// Scrape выполняет одну попытку: запрос, проверку недоступности и извлечение
func (a *Adapter) Scrape(ctx context.Context, productURL string, site domain.SiteTag, identity domain.Identity) (*domain.ScrapedProduct, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "SiteFetcherAdapter",
		"site":      site,
	})

	target, err := url.Parse(productURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", productURL, err)
	}

	if err := a.limiter.Wait(ctx, site); err != nil {
		return nil, err
	}

	parent, err := a.collectorFor(identity.Proxy, target.Host)
	if err != nil {
		return nil, err
	}
	collector := parent.Clone()

	var result *domain.ScrapedProduct
	var criticalError error

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range identity.Headers {
			r.Headers.Set(k, v)
		}
		logger.Debug("Making request to product page", port.Fields{"url": r.URL.String(), "proxy": identity.Proxy != ""})
	})

	collector.OnResponse(func(r *colly.Response) {
		if criticalError != nil || result != nil {
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			criticalError = fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
			return
		}
		data, err := a.registry.Parse(doc, site)
		if err != nil {
			criticalError = err
			return
		}
		result = data
	})

	collector.OnError(func(r *colly.Response, err error) {
		criticalError = classifyFetchError(productURL, r, err)
		logger.Warn("Product page request failed", port.Fields{
			"url":    productURL,
			"status": r.StatusCode,
			"error":  err.Error(),
		})
		if r.StatusCode == http.StatusForbidden {
			a.banProxy(logger, identity.Proxy)
		}
	})

	visitErr := collector.Visit(productURL)
	collector.Wait()

	if criticalError != nil {
		return nil, criticalError
	}
	if result == nil {
		if visitErr != nil {
			return nil, classifyFetchError(productURL, nil, visitErr)
		}
		return nil, domain.ErrExtractionFailed
	}
	return result, nil
}

// classifyFetchError переводит ошибку colly в доменную таксономию
func classifyFetchError(productURL string, r *colly.Response, err error) error {
	if r != nil && r.StatusCode >= 400 {
		return &domain.HTTPStatusError{StatusCode: r.StatusCode, URL: productURL}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrNetworkTimeout, err)
	}
	return fmt.Errorf("fetch %s: %w", productURL, err)
}
