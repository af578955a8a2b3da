package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/audit"
	billingapp "water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
)

// TariffHandler provides tariff endpoints.
type TariffHandler struct {
	service     *billingapp.TariffService
	auditLogger audit.Logger
}

// NewTariffHandler constructs a handler.
func NewTariffHandler(service *billingapp.TariffService, auditLogger audit.Logger) (*TariffHandler, error) {
	if service == nil {
		return nil, errors.New("tariff handler: nil service")
	}
	return &TariffHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/tariffs.
func (h *TariffHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/tariffs" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.URL.Path == "/api/v1/tariffs" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case r.URL.Path == "/api/v1/tariffs/active" && r.Method == http.MethodGet:
		h.handleActive(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *TariffHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tariffs, err := h.service.List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if tariffs == nil {
		tariffs = []billing.Tariff{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tariffs": tariffs})
}

func (h *TariffHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	tariff, err := h.service.Active(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tariff)
}

func (h *TariffHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ColdWaterRate  decimal.Decimal `json:"cold_water_rate"`
		HotWaterRate   decimal.Decimal `json:"hot_water_rate"`
		DirtyWaterRate decimal.Decimal `json:"dirty_water_rate"`
		EffectiveFrom  string          `json:"effective_from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var effectiveFrom time.Time
	if req.EffectiveFrom != "" {
		parsed, err := time.Parse(time.RFC3339, req.EffectiveFrom)
		if err != nil {
			http.Error(w, "effective_from must be RFC3339", http.StatusBadRequest)
			return
		}
		effectiveFrom = parsed
	}
	tariff, err := h.service.Create(r.Context(), billing.Rates{
		ColdWater:  req.ColdWaterRate,
		HotWater:   req.HotWaterRate,
		DirtyWater: req.DirtyWaterRate,
	}, effectiveFrom)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tariff)
	if h.auditLogger != nil {
		_ = h.auditLogger.Log(r.Context(), audit.FromRequest(r, "tariff.create", "tariff", strconv.FormatInt(tariff.ID, 10), "", tariff))
	}
}
