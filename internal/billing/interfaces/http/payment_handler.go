package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"water-billing/internal/audit"
	"water-billing/internal/auth"
	billingapp "water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
)

const dateLayout = "2006-01-02"

// PaymentHandler provides payment endpoints.
type PaymentHandler struct {
	generator   *billingapp.PaymentGenerator
	service     *billingapp.PaymentService
	auditLogger audit.Logger
}

// NewPaymentHandler constructs a handler.
func NewPaymentHandler(generator *billingapp.PaymentGenerator, service *billingapp.PaymentService, auditLogger audit.Logger) (*PaymentHandler, error) {
	if generator == nil {
		return nil, errors.New("payment handler: nil generator")
	}
	if service == nil {
		return nil, errors.New("payment handler: nil service")
	}
	return &PaymentHandler{generator: generator, service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles routes under /api/v1/payments.
func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/payments/generate" && r.Method == http.MethodPost {
		h.handleGenerate(w, r)
		return
	}
	if path == "/api/v1/payments/generate-month" && r.Method == http.MethodPost {
		h.handleGenerateMonth(w, r)
		return
	}
	if path == "/api/v1/payments" && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/payments/") {
		rest := strings.TrimPrefix(path, "/api/v1/payments/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *PaymentHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ApartmentID string `json:"apartment_id"`
		Month       string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := calendar.ParseMonth(req.Month)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	apartmentID, err := resolveApartment(r, req.ApartmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	result, err := h.generator.Generate(r.Context(), billingapp.GenerateRequest{
		ApartmentID: apartmentID,
		UserID:      auth.UserIDFromContext(r.Context()),
		Month:       month,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Existed {
		status = http.StatusOK
	}
	resp := paymentResponse(result.Payment, "")
	resp["existed"] = result.Existed
	resp["bill"] = result.Bill.Rounded()
	writeJSON(w, status, resp)
	if !result.Existed {
		h.logAudit(r, apartmentID, result.Payment.ID, "payment.generate", map[string]any{"month": month.String()})
	}
}

func (h *PaymentHandler) handleGenerateMonth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	month, err := calendar.ParseMonth(req.Month)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	batch, err := h.generator.GenerateMonth(r.Context(), month)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
	h.logAudit(r, "", month.String(), "payment.generate_month", map[string]any{
		"created":  batch.Created,
		"existing": batch.Existing,
		"skipped":  batch.Skipped,
		"failed":   len(batch.Failed),
	})
}

func (h *PaymentHandler) handleList(w http.ResponseWriter, r *http.Request) {
	apartmentID, err := resolveApartment(r, r.URL.Query().Get("apartment_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	payments, err := h.service.List(r.Context(), apartmentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(payments))
	for _, view := range h.service.Views(payments) {
		items = append(items, paymentResponse(view.Payment, view.Status))
	}
	writeJSON(w, http.StatusOK, map[string]any{"apartment_id": apartmentID, "payments": items})
}

func (h *PaymentHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]

	if len(parts) == 1 && r.Method == http.MethodGet {
		view, err := h.service.View(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if err := auth.EnsureApartmentAccess(r.Context(), view.Payment.ApartmentID); err != nil {
			respondServiceError(w, err)
			return
		}
		resp := paymentResponse(view.Payment, view.Status)
		if view.Bill != nil {
			resp["bill"] = view.Bill.Rounded()
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		var (
			payment *billing.Payment
			err     error
			action  string
		)
		switch parts[1] {
		case "pay":
			payment, err = h.service.MarkPaid(r.Context(), id)
			action = "payment.mark_paid"
		case "cancel":
			payment, err = h.service.Cancel(r.Context(), id)
			action = "payment.cancel"
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			respondServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, paymentResponse(*payment, ""))
		h.logAudit(r, payment.ApartmentID, payment.ID, action, map[string]any{"status": payment.Status})
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func paymentResponse(payment billing.Payment, display billing.DisplayStatus) map[string]any {
	resp := map[string]any{
		"id":            payment.ID,
		"apartment_id":  payment.ApartmentID,
		"user_id":       payment.UserID,
		"billing_month": payment.BillingMonth,
		"amount":        payment.Amount.StringFixed(billing.MoneyPlaces),
		"cold_usage":    payment.ColdUsage,
		"hot_usage":     payment.HotUsage,
		"pay_date":      payment.PayDate.Format(dateLayout),
		"status":        payment.Status,
		"tariff_id":     payment.TariffID,
		"created_at":    payment.CreatedAt.Format(time.RFC3339),
	}
	if payment.PaidDate != nil {
		resp["paid_date"] = payment.PaidDate.Format(time.RFC3339)
	}
	if display != "" {
		resp["display_status"] = display
	}
	return resp
}

func (h *PaymentHandler) logAudit(r *http.Request, apartmentID, paymentID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.FromRequest(r, action, "payment", paymentID, apartmentID, meta))
}
