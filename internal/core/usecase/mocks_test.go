package usecase

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/resilience"
	"github.com/shopspring/decimal"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Хранилище товаров и истории в памяти ---

type memoryRepo struct {
	mu         sync.Mutex
	products   map[int64]domain.Product
	history    map[int64][]domain.PriceHistoryEntry
	recipients map[int64]domain.AlertRecipient
	saves      int
	SaveErr    error
	FindDueErr error
}

func newMemoryRepo(products ...domain.Product) *memoryRepo {
	r := &memoryRepo{
		products:   make(map[int64]domain.Product),
		history:    make(map[int64][]domain.PriceHistoryEntry),
		recipients: make(map[int64]domain.AlertRecipient),
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *memoryRepo) FindDue(_ context.Context, bucketHours int, dueBefore time.Time) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FindDueErr != nil {
		return nil, r.FindDueErr
	}
	var due []domain.Product
	for _, p := range r.products {
		if p.CheckFrequencyHours != bucketHours {
			continue
		}
		if p.LastCheckedAt == nil || p.LastCheckedAt.Before(dueBefore) {
			due = append(due, p)
		}
	}
	slices.SortFunc(due, func(a, b domain.Product) int { return int(a.ID - b.ID) })
	return due, nil
}

func (r *memoryRepo) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r *memoryRepo) SaveCheck(_ context.Context, product *domain.Product, newHistoryPrice *decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.saves++
	r.products[product.ID] = *product
	if newHistoryPrice != nil {
		r.history[product.ID] = append(r.history[product.ID], domain.PriceHistoryEntry{
			ProductID:  product.ID,
			Price:      *newHistoryPrice,
			RecordedAt: time.Now(),
		})
	}
	return nil
}

func (r *memoryRepo) FindAlertRecipient(_ context.Context, productID int64) (*domain.AlertRecipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recipients[productID]; ok {
		return &rec, nil
	}
	return &domain.AlertRecipient{Email: "owner@example.com", Preferences: domain.DefaultNotificationPreferences()}, nil
}

func (r *memoryRepo) LatestPrice(_ context.Context, productID int64) (*decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[productID]
	if len(entries) == 0 {
		return nil, nil
	}
	p := entries[len(entries)-1].Price
	return &p, nil
}

func (r *memoryRepo) History(_ context.Context, productID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := slices.Clone(r.history[productID])
	slices.Reverse(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *memoryRepo) Statistics(_ context.Context, productID int64) (*domain.PriceStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	stats := domain.NewPriceStatistics(productID, p.CurrentPrice, domain.PriceAggregates{Total: int64(len(r.history[productID]))})
	return &stats, nil
}

func (r *memoryRepo) product(id int64) domain.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id]
}

func (r *memoryRepo) historyOf(id int64) []domain.PriceHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history[id])
}

// --- Телеметрия ---

type statsRecorder struct {
	mu    sync.Mutex
	stats []domain.ScrapingStat
}

func (s *statsRecorder) Record(_ context.Context, stat domain.ScrapingStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, stat)
	return nil
}

func (s *statsRecorder) all() []domain.ScrapingStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stats)
}

func (s *statsRecorder) byStatus(status domain.StatStatus) int {
	n := 0
	for _, st := range s.all() {
		if st.Status == status {
			n++
		}
	}
	return n
}

// --- Уведомления ---

type alertSenderMock struct {
	mu     sync.Mutex
	sent   []domain.PriceAlert
	SendFn func(ctx context.Context, alert domain.PriceAlert) error
}

func (m *alertSenderMock) SendPriceAlert(ctx context.Context, alert domain.PriceAlert) error {
	if m.SendFn != nil {
		if err := m.SendFn(ctx, alert); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	return nil
}

func (m *alertSenderMock) alerts() []domain.PriceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// --- Парсеры ---

type scrapeFn func(ctx context.Context, url string, site domain.SiteTag, identity domain.Identity) (*domain.ScrapedProduct, error)

type fetcherMock struct {
	mu       sync.Mutex
	calls    int
	urls     []string
	ScrapeFn scrapeFn
}

func (m *fetcherMock) Scrape(ctx context.Context, url string, site domain.SiteTag, identity domain.Identity) (*domain.ScrapedProduct, error) {
	m.mu.Lock()
	m.calls++
	m.urls = append(m.urls, url)
	m.mu.Unlock()
	return m.ScrapeFn(ctx, url, site, identity)
}

func (m *fetcherMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type browserMock struct {
	fetcherMock
}

func (m *browserMock) Close() error { return nil }

type detectorFunc func(rawURL string) domain.SiteTag

func (f detectorFunc) Detect(rawURL string) domain.SiteTag { return f(rawURL) }

func fixedSite(site domain.SiteTag) detectorFunc {
	return func(string) domain.SiteTag { return site }
}

type identityStub struct{}

func (identityStub) Next(_ domain.SiteTag, _ bool) domain.Identity {
	return domain.Identity{Headers: map[string]string{"User-Agent": "test-agent"}}
}

// --- Автомат ---

type breakerMock struct {
	mu        sync.Mutex
	successes int
	failures  int
	AllowFn   func(ctx context.Context, site domain.SiteTag) error
}

func (m *breakerMock) Allow(ctx context.Context, site domain.SiteTag) error {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, site)
	}
	return nil
}

func (m *breakerMock) RecordSuccess(context.Context, domain.SiteTag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *breakerMock) RecordFailure(context.Context, domain.SiteTag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *breakerMock) Reset(context.Context, domain.SiteTag) error { return nil }

func (m *breakerMock) State(context.Context, domain.SiteTag) (domain.CircuitState, error) {
	return domain.CircuitState{Status: domain.CircuitClosed}, nil
}

// --- Паузы ---

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.delays)
}

func newTestRetry(sleeps *sleepRecorder) resilience.RetryPolicy {
	p := resilience.NewRetryPolicy(3, 2*time.Second, 3)
	p.Jitter = func(time.Duration) time.Duration { return 0 }
	p.Sleep = sleeps.sleep
	return p
}
