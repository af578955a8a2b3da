package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/auth"
	billingapp "water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
	"water-billing/internal/billing/infrastructure/memory"
	"water-billing/internal/calendar"
	"water-billing/internal/txn"
)

type fixedUsage struct{}

// fixedUsage reports the reference consumption for every apartment except
// apt-empty, which has not submitted readings.
func (fixedUsage) MonthlyConsumption(ctx context.Context, apartmentID string, month calendar.Month) (billing.Consumption, error) {
	if apartmentID == "apt-empty" {
		return billing.Consumption{}, billing.ErrNoReadingsForMonth
	}
	return billing.Consumption{Cold: decimal.NewFromInt(10), Hot: decimal.NewFromInt(5)}, nil
}

type handlers struct {
	payments *PaymentHandler
	tariffs  *TariffHandler
}

func newHandlers(t *testing.T) handlers {
	t.Helper()
	tx := txn.NewLocalManager()
	clock := calendar.FixedClock{At: time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC)}
	tariffs, err := billingapp.NewTariffService(memory.NewTariffRepository(), tx, billingapp.WithTariffClock(clock))
	if err != nil {
		t.Fatalf("tariff service: %v", err)
	}
	payments := memory.NewPaymentRepository()
	generator, err := billingapp.NewPaymentGenerator(payments, tariffs, fixedUsage{}, tx, billingapp.DefaultGenerationPolicy(),
		billingapp.WithGeneratorClock(clock))
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	service, err := billingapp.NewPaymentService(payments, tariffs, tx, billingapp.WithPaymentClock(clock))
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	paymentHandler, err := NewPaymentHandler(generator, service, nil)
	if err != nil {
		t.Fatalf("payment handler: %v", err)
	}
	tariffHandler, err := NewTariffHandler(tariffs, nil)
	if err != nil {
		t.Fatalf("tariff handler: %v", err)
	}
	return handlers{payments: paymentHandler, tariffs: tariffHandler}
}

func withIdentity(req *http.Request, apartmentID string, role auth.Role) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "user-1", ApartmentID: apartmentID, Role: role}))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createTariff(t *testing.T, h handlers) {
	t.Helper()
	body := `{"cold_water_rate":"50","hot_water_rate":"75","dirty_water_rate":"100"}`
	rec := serve(h.tariffs, withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/tariffs", strings.NewReader(body)), "", auth.RoleAdmin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tariff: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateWithoutTariffIsServerError(t *testing.T) {
	h := newHandlers(t)
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/payments/generate", strings.NewReader(`{"month":"2026-05"}`)), "apt-1", auth.RoleResident)
	rec := serve(h.payments, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), billing.ErrNoTariffConfigured.Error()) {
		t.Fatalf("expected no tariff error, got %s", rec.Body.String())
	}
}

func TestGenerateWithoutReadingsIsConflict(t *testing.T) {
	h := newHandlers(t)
	createTariff(t, h)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/payments/generate", strings.NewReader(`{"month":"2026-05"}`)), "apt-empty", auth.RoleResident)
	rec := serve(h.payments, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), billing.ErrNoReadingsForMonth.Error()) {
		t.Fatalf("expected no readings error, got %s", rec.Body.String())
	}

	list := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil), "apt-empty", auth.RoleResident)
	rec = serve(h.payments, list)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var body struct {
		Payments []map[string]any `json:"payments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Payments) != 0 {
		t.Fatalf("no payment may be stored: %+v", body.Payments)
	}
}

func TestGenerateIdempotentOverHTTP(t *testing.T) {
	h := newHandlers(t)
	createTariff(t, h)

	send := func() (int, map[string]any) {
		req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/payments/generate", strings.NewReader(`{"month":"2026-05"}`)), "apt-1", auth.RoleResident)
		rec := serve(h.payments, req)
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return rec.Code, body
	}
	code, first := send()
	if code != http.StatusCreated || first["amount"] != "2625.00" || first["existed"] != false {
		t.Fatalf("unexpected first response %d: %+v", code, first)
	}
	if first["pay_date"] != "2026-06-30" {
		t.Fatalf("unexpected pay date: %v", first["pay_date"])
	}
	code, second := send()
	if code != http.StatusOK || second["id"] != first["id"] || second["existed"] != true {
		t.Fatalf("unexpected second response %d: %+v", code, second)
	}
}

func TestPaymentAccessAndTransitions(t *testing.T) {
	h := newHandlers(t)
	createTariff(t, h)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/payments/generate", strings.NewReader(`{"month":"2026-05"}`)), "apt-1", auth.RoleResident)
	rec := serve(h.payments, req)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil || created.ID == "" {
		t.Fatalf("decode created payment: %v", err)
	}

	rec = serve(h.payments, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+created.ID, nil), "apt-2", auth.RoleResident))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another apartment, got %d", rec.Code)
	}

	rec = serve(h.payments, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+created.ID, nil), "apt-1", auth.RoleResident))
	var view map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if rec.Code != http.StatusOK || view["display_status"] != "pending" {
		t.Fatalf("unexpected view %d: %+v", rec.Code, view)
	}

	rec = serve(h.payments, withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+created.ID+"/pay", nil), "", auth.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on pay, got %d", rec.Code)
	}
	rec = serve(h.payments, withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+created.ID+"/cancel", nil), "", auth.RoleAdmin))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on cancelling a paid payment, got %d", rec.Code)
	}

	rec = serve(h.payments, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/payments/missing", nil), "", auth.RoleAdmin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = serve(h.payments, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil), "apt-1", auth.RoleResident))
	var list struct {
		Payments []map[string]any `json:"payments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Payments) != 1 || list.Payments[0]["display_status"] != "paid" {
		t.Fatalf("unexpected list: %+v", list.Payments)
	}
}

func TestTariffEndpoints(t *testing.T) {
	h := newHandlers(t)

	rec := serve(h.tariffs, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/tariffs/active", nil), "apt-1", auth.RoleResident))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without tariff, got %d", rec.Code)
	}

	createTariff(t, h)
	rec = serve(h.tariffs, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/tariffs/active", nil), "apt-1", auth.RoleResident))
	var tariff billing.Tariff
	if err := json.NewDecoder(rec.Body).Decode(&tariff); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !tariff.IsActive || !tariff.Rates.HotWater.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("unexpected tariff: %+v", tariff)
	}

	body := `{"cold_water_rate":"-1","hot_water_rate":"1","dirty_water_rate":"1"}`
	rec = serve(h.tariffs, withIdentity(httptest.NewRequest(http.MethodPost, "/api/v1/tariffs", strings.NewReader(body)), "", auth.RoleAdmin))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for negative rate, got %d", rec.Code)
	}
}
