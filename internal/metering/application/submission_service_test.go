package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/calendar"
	"water-billing/internal/metering/domain"
	"water-billing/internal/metering/infrastructure/memory"
	"water-billing/internal/txn"
)

type stubPayments struct {
	mu    sync.Mutex
	calls []calendar.Month
}

func (s *stubPayments) GeneratePayment(ctx context.Context, apartmentID, userID string, month calendar.Month) (PaymentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, month)
	return PaymentSummary{ID: "pay-" + apartmentID, Month: month, Amount: decimal.NewFromInt(2625), Status: "pending"}, nil
}

type recordingPublisher struct {
	events []ReadingsSubmitted
}

func (p *recordingPublisher) PublishReadingsSubmitted(ctx context.Context, event ReadingsSubmitted) error {
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	apartments *memory.ApartmentRepository
	readings   *memory.ReadingRepository
	payments   *stubPayments
	publisher  *recordingPublisher
	service    *SubmissionService
}

func newFixture(t *testing.T, at time.Time, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		apartments: memory.NewApartmentRepository(
			metering.Apartment{ID: "apt-2", MeterCount: 2},
			metering.Apartment{ID: "apt-4", MeterCount: 4},
		),
		readings:  memory.NewReadingRepository(),
		payments:  &stubPayments{},
		publisher: &recordingPublisher{},
	}
	service, err := NewSubmissionService(f.apartments, f.readings, txn.NewLocalManager(), policy,
		WithPaymentGenerator(f.payments),
		WithReadingsPublisher(f.publisher),
		WithClock(calendar.FixedClock{At: at}),
	)
	if err != nil {
		t.Fatalf("new submission service: %v", err)
	}
	f.service = service
	return f
}

func kitchenEntries(cold, hot string) []metering.Entry {
	return []metering.Entry{
		{Location: "Kitchen", Type: "0", Indication: cold},
		{Location: "Kitchen", Type: "1", Indication: hot},
	}
}

func seed(t *testing.T, repo *memory.ReadingRepository, apartmentID string, at time.Time, values map[metering.Slot]string) {
	t.Helper()
	var readings []metering.Reading
	for slot, value := range values {
		readings = append(readings, metering.Reading{
			ID:          slot.String(),
			ApartmentID: apartmentID,
			UserID:      "user-1",
			Slot:        slot,
			Indication:  decimal.RequireFromString(value),
			RecordedAt:  at,
		})
	}
	if err := repo.InsertBatch(context.Background(), readings); err != nil {
		t.Fatalf("seed readings: %v", err)
	}
}

func TestSubmit_FirstReadingsGeneratePayment(t *testing.T) {
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, at, DefaultPolicy())

	result, err := f.service.Submit(context.Background(), SubmitRequest{
		UserID:      "user-1",
		ApartmentID: "apt-2",
		Entries:     kitchenEntries("10", "5"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Usage.Cold.Equal(decimal.NewFromInt(10)) || !result.Usage.Hot.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected usage: cold=%s hot=%s", result.Usage.Cold, result.Usage.Hot)
	}
	if len(result.Readings) != 2 || f.readings.Count() != 2 {
		t.Fatalf("expected 2 stored readings, got %d/%d", len(result.Readings), f.readings.Count())
	}
	if result.Payment == nil || result.Payment.ID != "pay-apt-2" {
		t.Fatalf("expected payment summary, got %+v", result.Payment)
	}
	if len(f.payments.calls) != 1 || f.payments.calls[0] != (calendar.Month{Year: 2026, Month: time.March}) {
		t.Fatalf("unexpected payment calls: %+v", f.payments.calls)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Month.String() != "2026-03" {
		t.Fatalf("unexpected events: %+v", f.publisher.events)
	}
}

func TestSubmit_SecondSubmissionSameMonthRejected(t *testing.T) {
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, at, DefaultPolicy())
	ctx := context.Background()

	req := SubmitRequest{UserID: "user-1", ApartmentID: "apt-2", Entries: kitchenEntries("10", "5")}
	if _, err := f.service.Submit(ctx, req); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	req.Entries = kitchenEntries("12", "6")
	if _, err := f.service.Submit(ctx, req); !errors.Is(err, metering.ErrAlreadySubmittedThisMonth) {
		t.Fatalf("expected ErrAlreadySubmittedThisMonth, got %v", err)
	}
	if f.readings.Count() != 2 {
		t.Fatalf("second batch must not persist, got %d readings", f.readings.Count())
	}

	status, err := f.service.WindowStatus(ctx, "apt-2")
	if err != nil {
		t.Fatalf("window status: %v", err)
	}
	if status.Open || !status.WithinWindow || status.NotYetSubmitted {
		t.Fatalf("unexpected window status: %+v", status)
	}
}

func TestSubmit_IncompleteBatchPersistsNothing(t *testing.T) {
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, at, DefaultPolicy())

	_, err := f.service.Submit(context.Background(), SubmitRequest{
		UserID:      "user-1",
		ApartmentID: "apt-4",
		Entries:     kitchenEntries("10", "5"),
	})
	if !errors.Is(err, metering.ErrIncompleteSubmission) {
		t.Fatalf("expected ErrIncompleteSubmission, got %v", err)
	}
	if f.readings.Count() != 0 || len(f.payments.calls) != 0 {
		t.Fatalf("rejected batch must not persist or bill")
	}
}

func TestSubmit_WindowClosed(t *testing.T) {
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	policy := DefaultPolicy()
	policy.Window = metering.WindowPolicy{OpenDay: 20, CloseDay: 25}
	f := newFixture(t, at, policy)

	_, err := f.service.Submit(context.Background(), SubmitRequest{
		UserID:      "user-1",
		ApartmentID: "apt-2",
		Entries:     kitchenEntries("10", "5"),
	})
	if !errors.Is(err, metering.ErrSubmissionWindowClosed) {
		t.Fatalf("expected ErrSubmissionWindowClosed, got %v", err)
	}
}

func TestSubmit_UnknownApartment(t *testing.T) {
	f := newFixture(t, time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), DefaultPolicy())
	_, err := f.service.Submit(context.Background(), SubmitRequest{UserID: "user-1", ApartmentID: "apt-x"})
	if !errors.Is(err, metering.ErrApartmentNotFound) {
		t.Fatalf("expected ErrApartmentNotFound, got %v", err)
	}
}

func TestSubmit_BaselineCrossesYearAndWarns(t *testing.T) {
	at := time.Date(2026, time.January, 3, 9, 0, 0, 0, time.UTC)
	policy := DefaultPolicy()
	policy.SignificantDeltaThreshold = decimal.NewFromInt(50)
	f := newFixture(t, at, policy)
	seed(t, f.readings, "apt-2", time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC), map[metering.Slot]string{
		{Location: metering.LocationKitchen, Type: metering.Cold}: "100",
		{Location: metering.LocationKitchen, Type: metering.Hot}:  "40",
	})

	result, err := f.service.Submit(context.Background(), SubmitRequest{
		UserID:      "user-1",
		ApartmentID: "apt-2",
		Entries:     kitchenEntries("180", "35"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Usage.Cold.Equal(decimal.NewFromInt(80)) || !result.Usage.Hot.IsZero() {
		t.Fatalf("unexpected usage: cold=%s hot=%s", result.Usage.Cold, result.Usage.Hot)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected increase and lower warnings, got %+v", result.Warnings)
	}
	if result.Warnings[0].Code != metering.WarningSignificantIncrease || result.Warnings[1].Code != metering.WarningLowerThanPrevious {
		t.Fatalf("unexpected warnings: %+v", result.Warnings)
	}
}

func TestSubmit_ConcurrentSubmissionsAcceptOne(t *testing.T) {
	at := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, at, DefaultPolicy())

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Submit(context.Background(), SubmitRequest{
				UserID:      "user-1",
				ApartmentID: "apt-2",
				Entries:     kitchenEntries("10", "5"),
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 1 || f.readings.Count() != 2 {
		t.Fatalf("expected one accepted batch, got %d (%d readings)", accepted, f.readings.Count())
	}
}

func TestBaselineLocator_Lookback(t *testing.T) {
	repo := memory.NewReadingRepository()
	seed(t, repo, "apt-2", time.Date(2025, time.October, 10, 0, 0, 0, 0, time.UTC), map[metering.Slot]string{
		{Location: metering.LocationKitchen, Type: metering.Cold}: "50",
		{Location: metering.LocationKitchen, Type: metering.Hot}:  "20",
	})
	seed(t, repo, "apt-2", time.Date(2025, time.December, 10, 0, 0, 0, 0, time.UTC), map[metering.Slot]string{
		{Location: metering.LocationKitchen, Type: metering.Cold}: "70",
	})
	jan := calendar.Month{Year: 2026, Month: time.January}

	exact, _ := NewBaselineLocator(repo, time.UTC, 1)
	baseline, err := exact.Baseline(context.Background(), "apt-2", jan)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if len(baseline) != 1 || !baseline[metering.Slot{Location: metering.LocationKitchen, Type: metering.Cold}].Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected one-month baseline: %v", baseline)
	}

	wide, _ := NewBaselineLocator(repo, time.UTC, 3)
	baseline, err = wide.Baseline(context.Background(), "apt-2", jan)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	if !baseline[metering.Slot{Location: metering.LocationKitchen, Type: metering.Cold}].Equal(decimal.NewFromInt(70)) {
		t.Fatalf("nearest month must win: %v", baseline)
	}
	if !baseline[metering.Slot{Location: metering.LocationKitchen, Type: metering.Hot}].Equal(decimal.NewFromInt(20)) {
		t.Fatalf("missing slot should be filled from october: %v", baseline)
	}
}
