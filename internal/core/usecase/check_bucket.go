package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchConfig - размер пачки и число одновременных проверок внутри пачки
type BatchConfig struct {
	BatchSize      int
	WorkerPoolSize int
}

// CheckBucketUseCase - один запуск проверки корзины частоты:
// выборка, сортировка по приоритету, последовательные пачки с ограниченным параллелизмом.
type CheckBucketUseCase struct {
	products port.ProductRepositoryPort
	stats    port.ScrapingStatsPort
	detector port.SiteDetectorPort
	scraper  usecases_port.ScrapeProductPort
	applier  usecases_port.ApplyResultPort
	cfg      BatchConfig
	now      func() time.Time
}

func NewCheckBucketUseCase(
	products port.ProductRepositoryPort,
	stats port.ScrapingStatsPort,
	detector port.SiteDetectorPort,
	scraper usecases_port.ScrapeProductPort,
	applier usecases_port.ApplyResultPort,
	cfg BatchConfig,
) *CheckBucketUseCase {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	if cfg.WorkerPoolSize < 1 {
		cfg.WorkerPoolSize = 5
	}
	return &CheckBucketUseCase{
		products: products,
		stats:    stats,
		detector: detector,
		scraper:  scraper,
		applier:  applier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (uc *CheckBucketUseCase) Execute(ctx context.Context, bucketHours int) (domain.RunReport, error) {
	report := domain.RunReport{RunID: uuid.NewString(), BucketHours: bucketHours}
	if !domain.ValidBucket(bucketHours) {
		return report, fmt.Errorf("%w: %d", domain.ErrInvalidBucket, bucketHours)
	}

	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":     "CheckBucket",
		"run_id":       report.RunID,
		"bucket_hours": bucketHours,
	})
	ctx = contextkeys.ContextWithLogger(ctx, ucLogger)
	if contextkeys.TraceIDFromContext(ctx) == "" {
		ctx = contextkeys.ContextWithTraceID(ctx, report.RunID)
	}

	dueBefore := uc.now().Add(-time.Duration(bucketHours) * time.Hour)
	due, err := uc.products.FindDue(ctx, bucketHours, dueBefore)
	if err != nil {
		ucLogger.Error("Failed to select due products", err, nil)
		return report, fmt.Errorf("failed to select due products: %w", err)
	}
	report.Selected = len(due)
	if len(due) == 0 {
		ucLogger.Info("No products due for check", nil)
		return report, nil
	}

	batches := Batches(SortByPriority(due), uc.cfg.BatchSize)
	ucLogger.Info("Starting bucket run", port.Fields{"selected": len(due), "batches": len(batches)})

	var mu sync.Mutex
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			ucLogger.Warn("Bucket run cancelled", port.Fields{"completed_batches": i})
			return report, err
		}
		report.Batches++

		var g errgroup.Group
		g.SetLimit(uc.cfg.WorkerPoolSize)
		for _, product := range batch {
			g.Go(func() error {
				kind, alerted := uc.checkProduct(ctx, product)
				mu.Lock()
				report.Add(kind, alerted)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		ucLogger.Debug("Batch completed", port.Fields{"batch": i + 1, "size": len(batch)})
	}

	ucLogger.Info("Bucket run completed", port.Fields{
		"selected":    report.Selected,
		"batches":     report.Batches,
		"succeeded":   report.Succeeded,
		"unavailable": report.Unavailable,
		"failed":      report.Failed,
		"alerts":      report.Alerts,
	})
	return report, nil
}

// checkProduct - граница воркера: паника одного товара не прерывает пачку
func (uc *CheckBucketUseCase) checkProduct(ctx context.Context, product domain.Product) (kind domain.OutcomeKind, alerted bool) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"product_id": product.ID})

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while checking product %d: %v", product.ID, r)
			logger.Error("Recovered from panic in worker", err, nil)
			uc.recordPanic(ctx, product, err)
			kind, alerted = domain.OutcomeFailure, false
		}
	}()

	outcome := uc.scraper.Execute(ctx, product.URL, &product.ID)
	alerted, err := uc.applier.Execute(ctx, &product, outcome)
	if err != nil {
		logger.Error("Failed to apply check result", err, nil)
		return domain.OutcomeFailure, false
	}
	return outcome.Kind, alerted
}

func (uc *CheckBucketUseCase) recordPanic(ctx context.Context, product domain.Product, err error) {
	if uc.stats == nil {
		return
	}
	site := domain.SiteUnknown
	if uc.detector != nil {
		site = uc.detector.Detect(product.URL)
	}
	stat := domain.NewScrapingStat(site, &product.ID, domain.StatFailure, 0, err)
	if recErr := uc.stats.Record(context.WithoutCancel(ctx), stat); recErr != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to record panic stat", recErr, nil)
	}
}
