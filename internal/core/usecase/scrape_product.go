package usecase

import (
	"context"
	"time"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	"github.com/Analogium/PriceWatch/internal/core/resilience"
)

// ScrapeConfig - переключатели конвейера
type ScrapeConfig struct {
	CacheTTL       time.Duration
	UseFullHeaders bool
}

// ScrapeDeps - зависимости конвейера. Breaker, Cache и Browser необязательны:
// nil отключает соответствующий шаг.
type ScrapeDeps struct {
	Detector   port.SiteDetectorPort
	Fetcher    port.SiteScraperPort
	Browser    port.BrowserScraperPort
	Identities port.IdentityProviderPort
	Breaker    port.CircuitBreakerPort
	Cache      port.ResultCachePort
	Stats      port.ScrapingStatsPort
}

// ScrapeProductUseCase - конвейер получения цены по URL:
// шлюз автомата, кэш, попытки с паузами, резервный браузер.
// Исход всегда возвращается значением, ошибки не используются для управления потоком.
type ScrapeProductUseCase struct {
	deps  ScrapeDeps
	retry resilience.RetryPolicy
	cfg   ScrapeConfig
	now   func() time.Time
}

func NewScrapeProductUseCase(deps ScrapeDeps, retry resilience.RetryPolicy, cfg ScrapeConfig) *ScrapeProductUseCase {
	return &ScrapeProductUseCase{
		deps:  deps,
		retry: retry,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Execute прогоняет URL через конвейер. productID попадает в телеметрию, может быть nil.
func (uc *ScrapeProductUseCase) Execute(ctx context.Context, url string, productID *int64) domain.ScrapeOutcome {
	start := uc.now()
	site := uc.deps.Detector.Detect(url)

	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ScrapeProduct",
		"site":     site,
	})
	if productID != nil {
		ucLogger = ucLogger.WithFields(port.Fields{"product_id": *productID})
	}
	ctx = contextkeys.ContextWithLogger(ctx, ucLogger)

	if uc.deps.Breaker != nil {
		if err := uc.deps.Breaker.Allow(ctx, site); err != nil {
			ucLogger.Warn("Circuit open, request skipped", nil)
			uc.recordStat(ctx, site, productID, domain.StatFailure, 0, err)
			return domain.FailureOutcome(site, err)
		}
	}

	if cached := uc.lookupCache(ctx, url); cached != nil {
		ucLogger.Debug("Cache hit", port.Fields{"cached_at": cached.CachedAt})
		out := domain.SuccessOutcome(site, cached.Data)
		out.FromCache = true
		out.Duration = uc.now().Sub(start)
		return out
	}

	var lastErr error
	for attempt := 1; attempt <= uc.retry.MaxAttempts; attempt++ {
		if err := uc.retry.Wait(ctx, attempt, lastErr); err != nil {
			ucLogger.Warn("Retry wait interrupted", port.Fields{"attempt": attempt})
			out := uc.finishFailure(ctx, site, productID, start, err)
			out.Attempts = attempt - 1
			return out
		}

		identity := uc.deps.Identities.Next(site, uc.cfg.UseFullHeaders)
		data, err := uc.deps.Fetcher.Scrape(ctx, url, site, identity)
		if err == nil {
			out := uc.finishSuccess(ctx, url, site, productID, start, *data)
			out.Attempts = attempt
			ucLogger.Info("Price scraped", port.Fields{"attempt": attempt, "price": data.Price.String()})
			return out
		}
		lastErr = err

		switch resilience.Classify(err, attempt >= uc.retry.MaxAttempts) {
		case resilience.DecisionRetry:
			ucLogger.Warn("Attempt failed, retrying", port.Fields{"attempt": attempt, "error": err.Error()})
			continue

		case resilience.DecisionUnavailable:
			out := uc.finishUnavailable(ctx, site, productID, start, err)
			out.Attempts = attempt
			return out

		case resilience.DecisionEscalate:
			if uc.deps.Browser == nil {
				out := uc.finishFailure(ctx, site, productID, start, err)
				out.Attempts = attempt
				return out
			}
			ucLogger.Warn("Attempts exhausted, escalating to browser", port.Fields{"error": err.Error()})
			uc.recordStat(ctx, site, productID, domain.StatFailure, uc.now().Sub(start), err)
			out := uc.fallback(ctx, url, site, productID)
			out.Attempts = attempt
			out.Duration = uc.now().Sub(start)
			return out

		default:
			out := uc.finishFailure(ctx, site, productID, start, err)
			out.Attempts = attempt
			return out
		}
	}

	// MaxAttempts < 1 не пропускает ни одной попытки
	return uc.finishFailure(ctx, site, productID, start, domain.ErrExtractionFailed)
}

// fallback - однократный запуск браузера, пишет собственную строку телеметрии
func (uc *ScrapeProductUseCase) fallback(ctx context.Context, url string, site domain.SiteTag, productID *int64) domain.ScrapeOutcome {
	start := uc.now()
	identity := uc.deps.Identities.Next(site, true)

	data, err := uc.deps.Browser.Scrape(ctx, url, site, identity)
	var out domain.ScrapeOutcome
	switch {
	case err == nil:
		out = uc.finishSuccess(ctx, url, site, productID, start, *data)
		contextkeys.LoggerFromContext(ctx).Info("Price scraped by browser", port.Fields{"price": data.Price.String()})
	case resilience.Classify(err, true) == resilience.DecisionUnavailable:
		out = uc.finishUnavailable(ctx, site, productID, start, err)
	default:
		out = uc.finishFailure(ctx, site, productID, start, err)
	}
	out.Fallback = true
	return out
}

func (uc *ScrapeProductUseCase) finishSuccess(ctx context.Context, url string, site domain.SiteTag, productID *int64, start time.Time, data domain.ScrapedProduct) domain.ScrapeOutcome {
	elapsed := uc.now().Sub(start)
	if uc.deps.Breaker != nil {
		uc.deps.Breaker.RecordSuccess(ctx, site)
	}
	uc.storeCache(ctx, url, data)
	uc.recordStat(ctx, site, productID, domain.StatSuccess, elapsed, nil)

	out := domain.SuccessOutcome(site, data)
	out.Duration = elapsed
	return out
}

// finishUnavailable - сайт ответил корректно, поэтому для автомата это успех
func (uc *ScrapeProductUseCase) finishUnavailable(ctx context.Context, site domain.SiteTag, productID *int64, start time.Time, err error) domain.ScrapeOutcome {
	elapsed := uc.now().Sub(start)
	if uc.deps.Breaker != nil {
		uc.deps.Breaker.RecordSuccess(ctx, site)
	}
	uc.recordStat(ctx, site, productID, domain.StatUnavailable, elapsed, err)
	contextkeys.LoggerFromContext(ctx).Info("Product unavailable", port.Fields{"reason": err.Error()})

	out := domain.UnavailableOutcome(site, err)
	out.Duration = elapsed
	return out
}

func (uc *ScrapeProductUseCase) finishFailure(ctx context.Context, site domain.SiteTag, productID *int64, start time.Time, err error) domain.ScrapeOutcome {
	elapsed := uc.now().Sub(start)
	if uc.deps.Breaker != nil && ctx.Err() == nil {
		uc.deps.Breaker.RecordFailure(ctx, site)
	}
	uc.recordStat(ctx, site, productID, domain.StatFailure, elapsed, err)
	contextkeys.LoggerFromContext(ctx).Error("Scraping failed", err, nil)

	out := domain.FailureOutcome(site, err)
	out.Duration = elapsed
	return out
}

func (uc *ScrapeProductUseCase) lookupCache(ctx context.Context, url string) *domain.CachedResult {
	if uc.deps.Cache == nil {
		return nil
	}
	cached, err := uc.deps.Cache.Get(ctx, url)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Cache read failed, treating as miss", err, nil)
		return nil
	}
	return cached
}

func (uc *ScrapeProductUseCase) storeCache(ctx context.Context, url string, data domain.ScrapedProduct) {
	if uc.deps.Cache == nil {
		return
	}
	if err := uc.deps.Cache.Set(ctx, url, data, uc.cfg.CacheTTL); err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Cache write failed", err, nil)
	}
}

// recordStat пишет телеметрию. Сбой записи не влияет на исход.
func (uc *ScrapeProductUseCase) recordStat(ctx context.Context, site domain.SiteTag, productID *int64, status domain.StatStatus, elapsed time.Duration, err error) {
	if uc.deps.Stats == nil {
		return
	}
	stat := domain.NewScrapingStat(site, productID, status, elapsed, err)
	if recErr := uc.deps.Stats.Record(context.WithoutCancel(ctx), stat); recErr != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to record scraping stat", recErr, nil)
	}
}
