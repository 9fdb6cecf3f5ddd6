package rest

import (
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CircuitStateResponse - состояние автомата сайта
type CircuitStateResponse struct {
	Site          domain.SiteTag       `json:"site"`
	State         domain.CircuitStatus `json:"state"`
	FailureCount  int                  `json:"failure_count"`
	SuccessCount  int                  `json:"success_count"`
	LastFailureAt *time.Time           `json:"last_failure_at,omitempty"`
}

// PriceHistoryPointResponse - одна запись истории цены
type PriceHistoryPointResponse struct {
	Price      decimal.Decimal `json:"price"`
	RecordedAt time.Time       `json:"recorded_at"`
}

type PriceHistoryResponse struct {
	ProductID int64                       `json:"product_id"`
	Data      []PriceHistoryPointResponse `json:"data"`
}

type CacheClearResponse struct {
	Removed int `json:"removed"`
}

type CacheInvalidateResponse struct {
	URL     string `json:"url"`
	Removed bool   `json:"removed"`
}

type ResetCircuitResponse struct {
	Site   domain.SiteTag `json:"site"`
	Status string         `json:"status"`
}
