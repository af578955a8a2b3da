package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"water-billing/internal/audit"
	"water-billing/internal/auth"
	"water-billing/internal/calendar"
	meteringapp "water-billing/internal/metering/application"
	metering "water-billing/internal/metering/domain"
	"water-billing/internal/metering/infrastructure/memory"
	"water-billing/internal/txn"
)

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Log(ctx context.Context, entry audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func newTestHandler(t *testing.T, policy meteringapp.Policy) (*Handler, *recordingAudit) {
	t.Helper()
	apartments := memory.NewApartmentRepository(metering.Apartment{ID: "apt-1", MeterCount: 3})
	service, err := meteringapp.NewSubmissionService(apartments, memory.NewReadingRepository(), txn.NewLocalManager(), policy,
		meteringapp.WithClock(calendar.FixedClock{At: time.Date(2026, time.May, 10, 8, 0, 0, 0, time.UTC)}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	auditLog := &recordingAudit{}
	handler, err := NewHandler(service, auditLog)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, auditLog
}

func asResident(req *http.Request, apartmentID string) *http.Request {
	ctx := auth.WithIdentity(req.Context(), auth.Identity{UserID: "user-1", ApartmentID: apartmentID, Role: auth.RoleResident})
	return req.WithContext(ctx)
}

const fullBatch = `{"readings":[
	{"location":"Kitchen","type":0,"indication":12.5},
	{"location":"Kitchen","type":1,"indication":"4"},
	{"location":"Bathroom","type":0,"indication":7}
]}`

func TestSubmitCreated(t *testing.T) {
	handler, auditLog := newTestHandler(t, meteringapp.DefaultPolicy())

	rec := httptest.NewRecorder()
	req := asResident(httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(fullBatch)), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Month    string            `json:"month"`
		Readings []json.RawMessage `json:"readings"`
		Usage    map[string]string `json:"usage"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Month != "2026-05" || len(body.Readings) != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Usage["cold"] != "19.5" || body.Usage["hot"] != "4" {
		t.Fatalf("unexpected usage: %+v", body.Usage)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "readings.submit" {
		t.Fatalf("expected one audit entry, got %+v", auditLog.entries)
	}

	rec = httptest.NewRecorder()
	req = asResident(httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(fullBatch)), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second submission, got %d", rec.Code)
	}
}

func TestSubmitValidationDetail(t *testing.T) {
	handler, auditLog := newTestHandler(t, meteringapp.DefaultPolicy())

	payload := `{"readings":[{"location":"Kitchen","type":0,"indication":"1"},{"location":"Kitchen","type":1,"indication":"1"}]}`
	rec := httptest.NewRecorder()
	req := asResident(httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(payload)), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		Error   string          `json:"error"`
		Missing []metering.Slot `json:"missing"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != metering.ErrIncompleteSubmission.Error() {
		t.Fatalf("unexpected error code: %q", body.Error)
	}
	if len(body.Missing) != 1 || body.Missing[0] != (metering.Slot{Location: metering.LocationBathroom, Type: metering.Cold}) {
		t.Fatalf("unexpected missing slots: %+v", body.Missing)
	}
	if len(auditLog.entries) != 0 {
		t.Fatalf("rejected batch must not be audited")
	}
}

func TestSubmitMalformedEntriesAreInvalidReading(t *testing.T) {
	handler, _ := newTestHandler(t, meteringapp.DefaultPolicy())

	payload := `{"readings":[
		{"location":"Kitchen","type":0,"indication":true},
		{"location":"Kitchen","type":"hot","indication":"4"},
		{"location":"Bathroom","type":1.5,"indication":7},
		{"location":"Bathroom","type":0,"indication":{"value":7}}
	]}`
	rec := httptest.NewRecorder()
	req := asResident(httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(payload)), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error     string           `json:"error"`
		Offending []metering.Entry `json:"offending"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != metering.ErrInvalidReading.Error() {
		t.Fatalf("unexpected error code: %q", body.Error)
	}
	if len(body.Offending) != 4 {
		t.Fatalf("expected 4 offending entries, got %+v", body.Offending)
	}
	if body.Offending[0].Indication != "true" || body.Offending[1].Type != "hot" || body.Offending[2].Type != "1.5" {
		t.Fatalf("offending entries must echo the submitted values: %+v", body.Offending)
	}
}

func TestSubmitBrokenJSON(t *testing.T) {
	handler, _ := newTestHandler(t, meteringapp.DefaultPolicy())

	rec := httptest.NewRecorder()
	req := asResident(httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(`{"readings":[`)), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSubmitWindowClosed(t *testing.T) {
	policy := meteringapp.DefaultPolicy()
	policy.Window = metering.WindowPolicy{OpenDay: 20, CloseDay: 25}
	handler, _ := newTestHandler(t, policy)

	rec := httptest.NewRecorder()
	req := asResident(httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(fullBatch)), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestResidentCannotReadOtherApartment(t *testing.T) {
	handler, _ := newTestHandler(t, meteringapp.DefaultPolicy())

	rec := httptest.NewRecorder()
	req := asResident(httptest.NewRequest(http.MethodGet, "/api/v1/readings/expected?apartment_id=apt-2", nil), "apt-1")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminUnknownApartment(t *testing.T) {
	handler, _ := newTestHandler(t, meteringapp.DefaultPolicy())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/readings/window?apartment_id=apt-9", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "admin", Role: auth.RoleAdmin}))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExpectedAndWindow(t *testing.T) {
	handler, _ := newTestHandler(t, meteringapp.DefaultPolicy())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, asResident(httptest.NewRequest(http.MethodGet, "/api/v1/readings/expected", nil), "apt-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var expected struct {
		Slots []metering.Slot `json:"slots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&expected); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(expected.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %+v", expected.Slots)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, asResident(httptest.NewRequest(http.MethodGet, "/api/v1/readings/window", nil), "apt-1"))
	var status metering.WindowStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Open || status.Month.String() != "2026-05" {
		t.Fatalf("unexpected status: %+v", status)
	}
}
