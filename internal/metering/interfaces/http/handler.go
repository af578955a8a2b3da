package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"water-billing/internal/audit"
	"water-billing/internal/auth"
	meteringapp "water-billing/internal/metering/application"
	metering "water-billing/internal/metering/domain"
)

// Handler provides reading submission endpoints.
type Handler struct {
	service     *meteringapp.SubmissionService
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *meteringapp.SubmissionService, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reading handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/readings.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/readings/expected" && r.Method == http.MethodGet:
		h.handleExpected(w, r)
	case r.URL.Path == "/api/v1/readings/window" && r.Method == http.MethodGet:
		h.handleWindow(w, r)
	case r.URL.Path == "/api/v1/readings" && r.Method == http.MethodPost:
		h.handleSubmit(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleExpected(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := resolveApartment(r, r.URL.Query().Get("apartment_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	slots, err := h.service.ExpectedSlots(r.Context(), apartmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"apartment_id": apartmentID,
		"slots":        slots,
	})
}

func (h *Handler) handleWindow(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := resolveApartment(r, r.URL.Query().Get("apartment_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status, err := h.service.WindowStatus(r.Context(), apartmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// entryRequest keeps every field raw: numbers and strings are both accepted,
// and a value of the wrong JSON kind is judged by the validator instead of
// failing the whole body.
type entryRequest struct {
	Location   json.RawMessage `json:"location"`
	Type       json.RawMessage `json:"type"`
	Indication json.RawMessage `json:"indication"`
}

func (e entryRequest) entry() metering.Entry {
	return metering.Entry{
		Location:   rawText(e.Location),
		Type:       rawText(e.Type),
		Indication: rawText(e.Indication),
	}
}

// rawText returns a JSON string unquoted, a number or other literal verbatim,
// and null or an absent field as "".
func rawText(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s
		}
	}
	return string(data)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApartmentID string         `json:"apartment_id"`
		Readings    []entryRequest `json:"readings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	apartmentID, err := resolveApartment(r, req.ApartmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	entries := make([]metering.Entry, 0, len(req.Readings))
	for _, item := range req.Readings {
		entries = append(entries, item.entry())
	}

	result, err := h.service.Submit(r.Context(), meteringapp.SubmitRequest{
		UserID:      auth.UserIDFromContext(r.Context()),
		ApartmentID: apartmentID,
		Entries:     entries,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	readings := make([]map[string]any, 0, len(result.Readings))
	for _, reading := range result.Readings {
		readings = append(readings, map[string]any{
			"id":          reading.ID,
			"location":    reading.Slot.Location,
			"type":        reading.Slot.Type,
			"indication":  reading.Indication,
			"recorded_at": reading.RecordedAt.Format(time.RFC3339),
		})
	}
	resp := map[string]any{
		"apartment_id": apartmentID,
		"month":        result.Month,
		"readings":     readings,
		"usage": map[string]any{
			"cold": result.Usage.Cold,
			"hot":  result.Usage.Hot,
		},
		"warnings": result.Warnings,
	}
	if result.Payment != nil {
		resp["payment"] = result.Payment
	}
	writeJSON(w, http.StatusCreated, resp)

	meta := map[string]any{"month": result.Month.String(), "readings": len(result.Readings)}
	if result.Payment != nil {
		meta["payment_id"] = result.Payment.ID
	}
	h.logAudit(r, apartmentID, "readings.submit", meta)
}

func (h *Handler) logAudit(r *http.Request, apartmentID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.FromRequest(r, action, "meter_readings", apartmentID, apartmentID, meta))
}

// resolveApartment picks the caller's own apartment unless an admin names one.
func resolveApartment(r *http.Request, requested string) (string, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", auth.ErrUnauthorized
	}
	apartmentID := requested
	if apartmentID == "" {
		apartmentID = identity.ApartmentID
	}
	if err := auth.EnsureApartmentAccess(r.Context(), apartmentID); err != nil {
		return "", err
	}
	return apartmentID, nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	var validation *metering.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     validation.Code.Error(),
			"offending": validation.Offending,
			"missing":   validation.Missing,
			"expected":  validation.Expected,
		})
	case errors.Is(err, auth.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, metering.ErrEmptyApartmentID), errors.Is(err, metering.ErrEmptyUserID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, metering.ErrApartmentNotFound):
		http.Error(w, "apartment not found", http.StatusNotFound)
	case errors.Is(err, metering.ErrSubmissionWindowClosed), errors.Is(err, metering.ErrAlreadySubmittedThisMonth):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, meteringapp.ErrBillingUnavailable):
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	case errors.Is(err, metering.ErrInvalidMeterCount):
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
