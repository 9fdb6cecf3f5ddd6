package browserfetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Analogium/PriceWatch/internal/adapters/extractor"
	"github.com/Analogium/PriceWatch/internal/constants"
	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/Analogium/PriceWatch/internal/core/resilience"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

var errCaptcha = errors.New("captcha page detected")

// Config браузерного парсера
type Config struct {
	Bin      string
	Headless bool
	// Proxy задается на уровне браузера, у страниц своего прокси нет
	Proxy       string
	MaxPages    int
	PageTimeout time.Duration
	Attempts    int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

type fetchFunc func(ctx context.Context, url string, identity domain.Identity) (string, error)

// Adapter - резервный парсер через headless Chrome, реализует port.BrowserScraperPort.
// Браузер запускается при первом обращении.
type Adapter struct {
	cfg      Config
	registry *extractor.Registry
	fetch    fetchFunc
	sleep    func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	closed  bool
}

func NewAdapter(cfg Config, registry *extractor.Registry) (*Adapter, error) {
	if registry == nil {
		return nil, fmt.Errorf("browserfetcher: extractor registry is required")
	}
	a := newAdapter(cfg, registry, nil)
	a.fetch = a.fetchHTML
	return a, nil
}

func newAdapter(cfg Config, registry *extractor.Registry, fetch fetchFunc) *Adapter {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 2
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = constants.DefaultBrowserAttempts
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = constants.BrowserRetryMinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = constants.BrowserRetryMaxDelay
	}
	return &Adapter{
		cfg:      cfg,
		registry: registry,
		fetch:    fetch,
		sleep:    resilience.SleepContext,
	}
}

// Scrape открывает страницу в браузере и извлекает данные.
// Недоступность товара возвращается сразу, остальные ошибки повторяются Attempts раз
// и в итоге оборачиваются в domain.ErrBrowserAutomation.
func (a *Adapter) Scrape(ctx context.Context, url string, site domain.SiteTag, identity domain.Identity) (*domain.ScrapedProduct, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "BrowserFetcherAdapter",
		"site":      site,
	})

	var lastErr error
	for attempt := 1; attempt <= a.cfg.Attempts; attempt++ {
		if attempt > 1 {
			if err := a.sleep(ctx, a.retryDelay()); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrBrowserAutomation, err)
			}
		}

		html, err := a.fetch(ctx, url, identity)
		if err == nil {
			var data *domain.ScrapedProduct
			data, err = a.parse(html, site)
			if err == nil {
				logger.Info("Browser extraction succeeded", port.Fields{"attempt": attempt})
				return data, nil
			}
			if errors.Is(err, domain.ErrProductUnavailable) {
				return nil, err
			}
		}

		lastErr = err
		logger.Warn("Browser attempt failed", port.Fields{"attempt": attempt, "error": err.Error()})
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrBrowserAutomation, lastErr)
}

func (a *Adapter) retryDelay() time.Duration {
	spread := a.cfg.MaxDelay - a.cfg.MinDelay
	if spread <= 0 {
		return a.cfg.MinDelay
	}
	return a.cfg.MinDelay + rand.N(spread)
}

// parse проверяет капчу, недоступность и извлекает данные
func (a *Adapter) parse(html string, site domain.SiteTag) (*domain.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if IsCaptcha(doc) {
		return nil, errCaptcha
	}
	return a.registry.Parse(doc, site)
}

// IsCaptcha распознает страницу проверки на робота
func IsCaptcha(doc *goquery.Document) bool {
	if doc.Find("form[action*='validateCaptcha']").Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").Text())
	return strings.Contains(title, "robot check") || strings.Contains(title, "captcha")
}

// ensureBrowser запускает браузер и создает пул страниц при первом вызове
func (a *Adapter) ensureBrowser() (*rod.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, errors.New("browser adapter is closed")
	}
	if a.browser != nil {
		return a.browser, nil
	}

	l := launcher.New().
		Headless(a.cfg.Headless).
		NoSandbox(true)
	if a.cfg.Bin != "" {
		l = l.Bin(a.cfg.Bin)
	}
	if a.cfg.Proxy != "" {
		l = l.Proxy(a.cfg.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	a.browser = browser
	a.pool = rod.NewPagePool(a.cfg.MaxPages)
	return browser, nil
}

func (a *Adapter) fetchHTML(ctx context.Context, url string, identity domain.Identity) (string, error) {
	browser, err := a.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := a.pool.Get(func() (*rod.Page, error) {
		return stealth.Page(browser)
	})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer a.pool.Put(page)

	p := page.Context(ctx).Timeout(a.cfg.PageTimeout)
	defer p.CancelTimeout()

	userAgent := identity.UserAgent()
	if userAgent != "" {
		err = p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      userAgent,
			AcceptLanguage: "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
		})
		if err != nil {
			return "", fmt.Errorf("set user agent: %w", err)
		}
	}
	if referer := identity.Headers["Referer"]; referer != "" {
		cleanup, err := p.SetExtraHeaders([]string{"Referer", referer})
		if err != nil {
			return "", fmt.Errorf("set headers: %w", err)
		}
		defer cleanup()
	}

	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Close закрывает страницы пула и процесс браузера
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	if a.browser == nil {
		return nil
	}
	a.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	err := a.browser.Close()
	a.browser = nil
	return err
}
