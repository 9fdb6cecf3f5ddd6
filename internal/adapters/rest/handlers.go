package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Analogium/PriceWatch/internal/contextkeys"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/Analogium/PriceWatch/internal/core/port"
	usecases_port "github.com/Analogium/PriceWatch/internal/core/port/usecases"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 100
)

// AdminHandler - обработчики служебного API
type AdminHandler struct {
	checkProductUC usecases_port.CheckProductPort
	checkBucketUC  usecases_port.CheckBucketPort
	historyUC      usecases_port.PriceHistoryPort
	maintenanceUC  usecases_port.MaintenancePort
}

func NewAdminHandler(
	checkProductUC usecases_port.CheckProductPort,
	checkBucketUC usecases_port.CheckBucketPort,
	historyUC usecases_port.PriceHistoryPort,
	maintenanceUC usecases_port.MaintenancePort,
) *AdminHandler {
	return &AdminHandler{
		checkProductUC: checkProductUC,
		checkBucketUC:  checkBucketUC,
		historyUC:      historyUC,
		maintenanceUC:  maintenanceUC,
	}
}

func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CheckProduct обрабатывает POST /api/v1/products/{productID}/check
func (h *AdminHandler) CheckProduct(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "CheckProduct"})

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	result, err := h.checkProductUC.Execute(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Product not found")
			return
		}
		logger.Error("Check product use case failed", err, port.Fields{"product_id": productID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to check product")
		return
	}

	RespondWithJSON(w, http.StatusOK, result)
}

// PriceStatistics обрабатывает GET /api/v1/products/{productID}/price-stats
func (h *AdminHandler) PriceStatistics(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "PriceStatistics"})

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	stats, err := h.historyUC.Statistics(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Product not found")
			return
		}
		logger.Error("Price statistics use case failed", err, port.Fields{"product_id": productID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to compute price statistics")
		return
	}

	RespondWithJSON(w, http.StatusOK, stats)
}

// PriceHistory обрабатывает GET /api/v1/products/{productID}/price-history?limit=
func (h *AdminHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "PriceHistory"})

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}
	limit, err := GetLimitOrDefault(r, defaultHistoryLimit)
	if err != nil || limit <= 0 {
		WriteJSONError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	entries, err := h.historyUC.History(r.Context(), productID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Product not found")
			return
		}
		logger.Error("Price history use case failed", err, port.Fields{"product_id": productID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to load price history")
		return
	}

	response := PriceHistoryResponse{ProductID: productID, Data: make([]PriceHistoryPointResponse, len(entries))}
	for i, e := range entries {
		response.Data[i] = PriceHistoryPointResponse{Price: e.Price, RecordedAt: e.RecordedAt}
	}
	RespondWithJSON(w, http.StatusOK, response)
}

// CircuitState обрабатывает GET /api/v1/circuits/{site}
func (h *AdminHandler) CircuitState(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "CircuitState"})

	site, state, err := h.maintenanceUC.CircuitState(r.Context(), chi.URLParam(r, "site"))
	if err != nil {
		h.writeMaintenanceError(w, logger, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, CircuitStateResponse{
		Site:          site,
		State:         state.Status,
		FailureCount:  state.FailureCount,
		SuccessCount:  state.SuccessCount,
		LastFailureAt: state.LastFailureAt,
	})
}

// ResetCircuit обрабатывает POST /api/v1/circuits/{site}/reset
func (h *AdminHandler) ResetCircuit(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ResetCircuit"})

	site, err := h.maintenanceUC.ResetCircuit(r.Context(), chi.URLParam(r, "site"))
	if err != nil {
		h.writeMaintenanceError(w, logger, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, ResetCircuitResponse{Site: site, Status: "reset"})
}

// ClearCache обрабатывает DELETE /api/v1/cache и DELETE /api/v1/cache?url=
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ClearCache"})

	if url := r.URL.Query().Get("url"); url != "" {
		removed, err := h.maintenanceUC.InvalidateCache(r.Context(), url)
		if err != nil {
			h.writeMaintenanceError(w, logger, err)
			return
		}
		RespondWithJSON(w, http.StatusOK, CacheInvalidateResponse{URL: url, Removed: removed})
		return
	}

	removed, err := h.maintenanceUC.ClearCache(r.Context())
	if err != nil {
		h.writeMaintenanceError(w, logger, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, CacheClearResponse{Removed: removed})
}

// RunBucket обрабатывает POST /api/v1/checks/{bucket}.
// По умолчанию прогон запускается в фоне и ответ 202; с ?wait=true возвращается отчет.
func (h *AdminHandler) RunBucket(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "RunBucket"})

	bucket, err := strconv.Atoi(chi.URLParam(r, "bucket"))
	if err != nil || !domain.ValidBucket(bucket) {
		WriteJSONError(w, http.StatusBadRequest, "Bucket must be one of 6, 12, 24")
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		report, err := h.checkBucketUC.Execute(r.Context(), bucket)
		if err != nil {
			logger.Error("Bucket run failed", err, port.Fields{"bucket_hours": bucket})
			WriteJSONError(w, http.StatusInternalServerError, "Bucket run failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, report)
		return
	}

	// запрос завершится раньше прогона, поэтому отмена запроса не должна его прерывать
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.checkBucketUC.Execute(runCtx, bucket); err != nil {
			logger.Error("Background bucket run failed", err, port.Fields{"bucket_hours": bucket})
		}
	}()

	RespondWithJSON(w, http.StatusAccepted, map[string]interface{}{"bucket_hours": bucket, "status": "started"})
}

func (h *AdminHandler) writeMaintenanceError(w http.ResponseWriter, logger port.LoggerPort, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownSite):
		WriteJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFeatureDisabled):
		WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("Maintenance operation failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Maintenance operation failed")
	}
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		WriteJSONError(w, http.StatusBadRequest, "Invalid product ID")
		return 0, false
	}
	return productID, true
}
