package metering

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/calendar"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeUsage_FirstReadingUsesZeroBaseline(t *testing.T) {
	current := map[Slot]decimal.Decimal{
		{LocationKitchen, Cold}: d("10"),
		{LocationKitchen, Hot}:  d("5"),
	}
	usage := ComputeUsage(current, nil)
	if !usage.Cold.Equal(d("10")) || !usage.Hot.Equal(d("5")) {
		t.Fatalf("unexpected usage: cold=%s hot=%s", usage.Cold, usage.Hot)
	}
	if !usage.Total().Equal(d("15")) {
		t.Fatalf("unexpected total: %s", usage.Total())
	}
}

func TestComputeUsage_ClampsNegativeDelta(t *testing.T) {
	current := map[Slot]decimal.Decimal{
		{LocationKitchen, Cold}:  d("120"),
		{LocationKitchen, Hot}:   d("40"),
		{LocationBathroom, Cold}: d("3"),
	}
	baseline := Baseline{
		{LocationKitchen, Cold}:  d("100"),
		{LocationKitchen, Hot}:   d("45"),
		{LocationBathroom, Cold}: d("1.5"),
	}
	usage := ComputeUsage(current, baseline)
	if !usage.Cold.Equal(d("21.5")) {
		t.Fatalf("unexpected cold usage: %s", usage.Cold)
	}
	if !usage.Hot.IsZero() {
		t.Fatalf("expected clamped hot usage, got %s", usage.Hot)
	}
	if usage.ClampedSlots() != 1 {
		t.Fatalf("expected 1 clamped slot, got %d", usage.ClampedSlots())
	}
	if usage.Slots[0].Slot != (Slot{LocationKitchen, Cold}) || usage.Slots[2].Slot != (Slot{LocationBathroom, Cold}) {
		t.Fatalf("slots not ordered: %+v", usage.Slots)
	}
}

func TestCompareReadings(t *testing.T) {
	usage := ComputeUsage(
		map[Slot]decimal.Decimal{
			{LocationKitchen, Cold}: d("150"),
			{LocationKitchen, Hot}:  d("40"),
		},
		Baseline{
			{LocationKitchen, Cold}: d("100"),
			{LocationKitchen, Hot}:  d("45"),
		},
	)
	warnings := CompareReadings(usage, d("20"))
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %+v", warnings)
	}
	if warnings[0].Code != WarningSignificantIncrease || warnings[1].Code != WarningLowerThanPrevious {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if got := CompareReadings(usage, decimal.Zero); len(got) != 1 {
		t.Fatalf("expected only the clamp warning with threshold disabled, got %+v", got)
	}
}

func TestWindowPolicy(t *testing.T) {
	policy := WindowPolicy{OpenDay: 20, CloseDay: 31}
	if err := policy.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cases := []struct {
		at   time.Time
		open bool
	}{
		{time.Date(2026, time.February, 19, 23, 0, 0, 0, time.UTC), false},
		{time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2026, time.February, 28, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2026, time.April, 30, 12, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := policy.IsOpen(tc.at); got != tc.open {
			t.Fatalf("%s: expected open=%v, got %v", tc.at, tc.open, got)
		}
	}
	if err := (WindowPolicy{OpenDay: 10, CloseDay: 5}).Validate(); err == nil {
		t.Fatalf("expected inverted window to fail validation")
	}
	if !DefaultWindowPolicy().IsOpen(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("default window should be open all month")
	}
}

func TestWindowStatus_Err(t *testing.T) {
	month := calendar.Month{Year: 2026, Month: time.March}
	if err := NewWindowStatus(month, true, true).Err(); err != nil {
		t.Fatalf("expected open window, got %v", err)
	}
	if err := NewWindowStatus(month, false, true).Err(); err != ErrSubmissionWindowClosed {
		t.Fatalf("expected ErrSubmissionWindowClosed, got %v", err)
	}
	status := NewWindowStatus(month, true, false)
	if status.Open || status.Err() != ErrAlreadySubmittedThisMonth {
		t.Fatalf("expected already-submitted status, got %+v", status)
	}
}
