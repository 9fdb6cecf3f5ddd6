package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bucketFixture struct {
	uc      *CheckBucketUseCase
	repo    *memoryRepo
	fetcher *fetcherMock
	alerts  *alertSenderMock
	stats   *statsRecorder
	sleeps  *sleepRecorder
}

func newBucketFixture(cfg BatchConfig, fn scrapeFn, products ...domain.Product) *bucketFixture {
	f := &bucketFixture{
		repo:    newMemoryRepo(products...),
		fetcher: &fetcherMock{ScrapeFn: fn},
		alerts:  &alertSenderMock{},
		stats:   &statsRecorder{},
		sleeps:  &sleepRecorder{},
	}
	detector := fixedSite(domain.SiteFnac)
	scraper := NewScrapeProductUseCase(ScrapeDeps{
		Detector:   detector,
		Fetcher:    f.fetcher,
		Identities: identityStub{},
		Stats:      f.stats,
	}, newTestRetry(f.sleeps), ScrapeConfig{})
	applier := NewApplyResultUseCase(f.repo, f.repo, f.alerts)
	f.uc = NewCheckBucketUseCase(f.repo, f.stats, detector, scraper, applier, cfg)
	return f
}

func TestCheckBucket_PriceDropEndToEnd(t *testing.T) {
	t.Parallel()

	f := newBucketFixture(BatchConfig{BatchSize: 10, WorkerPoolSize: 2}, okScrape("95"), trackedProduct(1, "100", "100"))

	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, 1, report.Batches)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Alerts)
	assert.NotEmpty(t, report.RunID)

	assert.Len(t, f.repo.historyOf(1), 1)
	sent := f.alerts.alerts()
	require.Len(t, sent, 1)
	assert.True(t, price("95").Equal(sent[0].NewPrice))
	assert.True(t, price("100").Equal(sent[0].OldPrice))

	// товар проверен и больше не попадает в выборку
	report, err = f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Selected)
}

func TestCheckBucket_SamePriceOnConsecutiveRuns(t *testing.T) {
	t.Parallel()

	f := newBucketFixture(BatchConfig{BatchSize: 10, WorkerPoolSize: 1}, okScrape("110"), trackedProduct(1, "120", "100"))
	now := time.Now()

	_, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)

	// следующий запуск через сутки
	f.uc.now = func() time.Time { return now.Add(25 * time.Hour) }
	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Selected)

	assert.Len(t, f.repo.historyOf(1), 1)
	assert.Empty(t, f.alerts.alerts())
}

func TestCheckBucket_TimeoutsLeaveProductUnchanged(t *testing.T) {
	t.Parallel()

	f := newBucketFixture(BatchConfig{BatchSize: 10, WorkerPoolSize: 1}, failScrape(domain.ErrNetworkTimeout), trackedProduct(1, "100", "90"))

	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, f.fetcher.callCount())
	assert.GreaterOrEqual(t, len(f.sleeps.all()), 2)
	assert.Equal(t, 1, f.stats.byStatus(domain.StatFailure))
	assert.Equal(t, 0, f.repo.saves)
	assert.Nil(t, f.repo.product(1).LastCheckedAt)
}

func TestCheckBucket_NotFoundMarksUnavailable(t *testing.T) {
	t.Parallel()

	f := newBucketFixture(BatchConfig{BatchSize: 10, WorkerPoolSize: 1},
		failScrape(&domain.HTTPStatusError{StatusCode: 404, URL: productURL}), trackedProduct(1, "100", "90"))

	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unavailable)
	assert.Equal(t, 1, f.fetcher.callCount())
	assert.Empty(t, f.sleeps.all())
	saved := f.repo.product(1)
	assert.False(t, saved.IsAvailable)
	assert.NotNil(t, saved.UnavailableSince)
	assert.NotNil(t, saved.LastCheckedAt)
}

func TestCheckBucket_PriorityOrderAcrossBatches(t *testing.T) {
	t.Parallel()

	products := []domain.Product{
		trackedProduct(1, "200", "100"), // 1.0
		trackedProduct(2, "90", "100"),  // 0
		trackedProduct(3, "150", "100"), // 0.5
		trackedProduct(4, "80", "100"),  // 0
		trackedProduct(5, "110", "100"), // 0.1
	}
	for i := range products {
		products[i].URL = "https://www.fnac.com/p" + string(rune('0'+products[i].ID))
	}

	f := newBucketFixture(BatchConfig{BatchSize: 2, WorkerPoolSize: 1}, okScrape("500"), products...)

	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, 5, report.Succeeded)

	f.fetcher.mu.Lock()
	urls := append([]string(nil), f.fetcher.urls...)
	f.fetcher.mu.Unlock()
	assert.Equal(t, []string{
		"https://www.fnac.com/p2",
		"https://www.fnac.com/p4",
		"https://www.fnac.com/p5",
		"https://www.fnac.com/p3",
		"https://www.fnac.com/p1",
	}, urls)
}

func TestCheckBucket_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		inFlight  int
		maxFlight int
	)
	fn := func(context.Context, string, domain.SiteTag, domain.Identity) (*domain.ScrapedProduct, error) {
		mu.Lock()
		inFlight++
		maxFlight = max(maxFlight, inFlight)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return &domain.ScrapedProduct{Name: "x", Price: price("10")}, nil
	}

	var products []domain.Product
	for id := int64(1); id <= 12; id++ {
		products = append(products, trackedProduct(id, "10", "5"))
	}
	f := newBucketFixture(BatchConfig{BatchSize: 6, WorkerPoolSize: 3}, fn, products...)

	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Succeeded)
	assert.LessOrEqual(t, maxFlight, 3)
}

type panickingScraper struct {
	inner *ScrapeProductUseCase
}

func (p panickingScraper) Execute(ctx context.Context, url string, productID *int64) domain.ScrapeOutcome {
	if strings.HasSuffix(url, "/boom") {
		panic("selector exploded")
	}
	return p.inner.Execute(ctx, url, productID)
}

func TestCheckBucket_PanicIsContained(t *testing.T) {
	t.Parallel()

	boom := trackedProduct(2, "100", "90")
	boom.URL = "https://www.fnac.com/boom"
	f := newBucketFixture(BatchConfig{BatchSize: 10, WorkerPoolSize: 2}, okScrape("95"), trackedProduct(1, "100", "90"), boom)
	f.uc.scraper = panickingScraper{inner: f.uc.scraper.(*ScrapeProductUseCase)}

	report, err := f.uc.Execute(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	var panicStats int
	for _, st := range f.stats.all() {
		if st.Status == domain.StatFailure && st.ErrorMessage != nil && strings.Contains(*st.ErrorMessage, "panic") {
			panicStats++
			assert.Equal(t, domain.SiteFnac, st.SiteTag)
		}
	}
	assert.Equal(t, 1, panicStats)
}

func TestCheckBucket_SelectsOnlyDueProductsOfBucket(t *testing.T) {
	t.Parallel()

	recent := time.Now().Add(-time.Hour)
	stale := time.Now().Add(-7 * time.Hour)

	p1 := trackedProduct(1, "10", "5")
	p1.CheckFrequencyHours = 6
	p1.LastCheckedAt = &stale
	p2 := trackedProduct(2, "10", "5")
	p2.CheckFrequencyHours = 6
	p2.LastCheckedAt = &recent
	p3 := trackedProduct(3, "10", "5")
	p3.CheckFrequencyHours = 12

	f := newBucketFixture(BatchConfig{BatchSize: 10, WorkerPoolSize: 1}, okScrape("10"), p1, p2, p3)

	report, err := f.uc.Execute(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, 1, f.fetcher.callCount())
}

func TestCheckBucket_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid bucket", func(t *testing.T) {
		t.Parallel()
		f := newBucketFixture(BatchConfig{}, okScrape("1"))
		_, err := f.uc.Execute(context.Background(), 7)
		assert.ErrorIs(t, err, domain.ErrInvalidBucket)
	})

	t.Run("selection failure", func(t *testing.T) {
		t.Parallel()
		f := newBucketFixture(BatchConfig{}, okScrape("1"))
		f.repo.FindDueErr = errors.New("db down")
		_, err := f.uc.Execute(context.Background(), 12)
		assert.Error(t, err)
	})

	t.Run("cancelled before first batch", func(t *testing.T) {
		t.Parallel()
		f := newBucketFixture(BatchConfig{}, okScrape("1"), trackedProduct(1, "10", "5"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := f.uc.Execute(ctx, 24)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, report.Batches)
		assert.Equal(t, 0, f.fetcher.callCount())
	})
}
