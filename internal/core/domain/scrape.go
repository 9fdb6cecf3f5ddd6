package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SiteTag - короткий идентификатор поддерживаемого магазина
type SiteTag string

const (
	SiteAmazon    SiteTag = "amazon"
	SiteFnac      SiteTag = "fnac"
	SiteDarty     SiteTag = "darty"
	SiteCdiscount SiteTag = "cdiscount"
	SiteBoulanger SiteTag = "boulanger"
	SiteLeclerc   SiteTag = "leclerc"
	SiteUnknown   SiteTag = "unknown"
)

func (s SiteTag) String() string { return string(s) }

// ScrapedProduct - данные, извлеченные со страницы товара
type ScrapedProduct struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image,omitempty"`
}

// CachedResult - запись кэша результатов парсинга
type CachedResult struct {
	Data     ScrapedProduct `json:"data"`
	CachedAt time.Time      `json:"cached_at"`
}

// Identity - набор заголовков и прокси для одного исходящего запроса
type Identity struct {
	Headers map[string]string
	Proxy   string
}

// UserAgent возвращает User-Agent из набора заголовков
func (i Identity) UserAgent() string {
	return i.Headers["User-Agent"]
}

// OutcomeKind - вариант результата конвейера парсинга
type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeUnavailable OutcomeKind = "unavailable"
	OutcomeFailure     OutcomeKind = "failure"
)

// ScrapeOutcome - явный результат конвейера вместо исключений.
// Data заполнена только для OutcomeSuccess, Err - для OutcomeUnavailable и OutcomeFailure.
type ScrapeOutcome struct {
	Kind      OutcomeKind
	Site      SiteTag
	Data      *ScrapedProduct
	Err       error
	Attempts  int
	FromCache bool
	Fallback  bool
	Duration  time.Duration
}

func SuccessOutcome(site SiteTag, data ScrapedProduct) ScrapeOutcome {
	return ScrapeOutcome{Kind: OutcomeSuccess, Site: site, Data: &data}
}

func UnavailableOutcome(site SiteTag, err error) ScrapeOutcome {
	return ScrapeOutcome{Kind: OutcomeUnavailable, Site: site, Err: err}
}

func FailureOutcome(site SiteTag, err error) ScrapeOutcome {
	return ScrapeOutcome{Kind: OutcomeFailure, Site: site, Err: err}
}

// CacheKey - детерминированный ключ кэша для URL
func CacheKey(url string) string {
	sum := md5.Sum([]byte(url))
	return CacheKeyPrefix + hex.EncodeToString(sum[:])
}

// CacheKeyPrefix - общий префикс ключей кэша в хранилище
const CacheKeyPrefix = "scraper_cache:"

// KnownSites - сайты со своими извлекателями и порогами
var KnownSites = []SiteTag{SiteAmazon, SiteFnac, SiteDarty, SiteCdiscount, SiteBoulanger, SiteLeclerc}

// ParseSiteTag проверяет имя сайта из внешнего ввода
func ParseSiteTag(s string) (SiteTag, error) {
	for _, site := range KnownSites {
		if string(site) == s {
			return site, nil
		}
	}
	return SiteUnknown, fmt.Errorf("%w: %q", ErrUnknownSite, s)
}

// CheckResult - итог проверки одного товара для внешних вызывающих
type CheckResult struct {
	ProductID int64            `json:"product_id"`
	Status    OutcomeKind      `json:"status"`
	Site      SiteTag          `json:"site"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Error     string           `json:"error,omitempty"`
	Attempts  int              `json:"attempts"`
	FromCache bool             `json:"from_cache"`
	Fallback  bool             `json:"fallback"`
	Alerted   bool             `json:"alerted"`
}

// NewCheckResult собирает итог из исхода конвейера
func NewCheckResult(productID int64, outcome ScrapeOutcome, alerted bool) CheckResult {
	res := CheckResult{
		ProductID: productID,
		Status:    outcome.Kind,
		Site:      outcome.Site,
		Attempts:  outcome.Attempts,
		FromCache: outcome.FromCache,
		Fallback:  outcome.Fallback,
		Alerted:   alerted,
	}
	if outcome.Data != nil {
		price := outcome.Data.Price
		res.Price = &price
	}
	if outcome.Err != nil {
		res.Error = outcome.Err.Error()
	}
	return res
}
