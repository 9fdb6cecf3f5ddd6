package domain

import "time"

// CircuitStatus - состояние автомата circuit breaker
type CircuitStatus string

const (
	CircuitClosed   CircuitStatus = "closed"
	CircuitOpen     CircuitStatus = "open"
	CircuitHalfOpen CircuitStatus = "half_open"
)

// CircuitState - состояние автомата для одного сайта в общем хранилище
type CircuitState struct {
	Status        CircuitStatus `json:"state"`
	FailureCount  int           `json:"failure_count"`
	SuccessCount  int           `json:"success_count"`
	LastFailureAt *time.Time    `json:"last_failure_at,omitempty"`
}

// SiteThreshold - пороги автомата для конкретного сайта
type SiteThreshold struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}
