package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

// CircuitStore хранит состояния автоматов в памяти процесса.
// Подходит для одиночного процесса и тестов, между процессами не разделяется.
type CircuitStore struct {
	mu     sync.Mutex
	states map[domain.SiteTag]domain.CircuitState
	probes map[domain.SiteTag]time.Time
	now    func() time.Time
}

func NewCircuitStore() *CircuitStore {
	return &CircuitStore{
		states: make(map[domain.SiteTag]domain.CircuitState),
		probes: make(map[domain.SiteTag]time.Time),
		now:    time.Now,
	}
}

// WithClock подменяет часы, по которым истекают пробные аренды
func (s *CircuitStore) WithClock(now func() time.Time) *CircuitStore {
	s.now = now
	return s
}

func (s *CircuitStore) Load(_ context.Context, site domain.SiteTag) (*domain.CircuitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[site]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *CircuitStore) Save(_ context.Context, site domain.SiteTag, state domain.CircuitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[site] = state
	return nil
}

func (s *CircuitStore) Delete(_ context.Context, site domain.SiteTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, site)
	return nil
}

func (s *CircuitStore) AcquireProbe(_ context.Context, site domain.SiteTag, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expires, ok := s.probes[site]; ok && now.Before(expires) {
		return false, nil
	}
	s.probes[site] = now.Add(lease)
	return true, nil
}

func (s *CircuitStore) ReleaseProbe(_ context.Context, site domain.SiteTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.probes, site)
	return nil
}
