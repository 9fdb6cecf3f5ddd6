package sitefetcher

import (
	"context"
	"sync"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"golang.org/x/time/rate"
)

// SiteLimiter ограничивает частоту запросов к каждому сайту отдельно
type SiteLimiter struct {
	mu       sync.RWMutex
	limiters map[domain.SiteTag]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewSiteLimiter создает ограничитель на perSecond запросов в секунду на сайт.
// perSecond <= 0 отключает ограничение.
func NewSiteLimiter(perSecond float64, burst int) *SiteLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &SiteLimiter{
		limiters: make(map[domain.SiteTag]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *SiteLimiter) get(site domain.SiteTag) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[site]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok = l.limiters[site]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[site] = limiter
	return limiter
}

// Wait блокируется, пока запрос к сайту не станет разрешен
func (l *SiteLimiter) Wait(ctx context.Context, site domain.SiteTag) error {
	return l.get(site).Wait(ctx)
}
