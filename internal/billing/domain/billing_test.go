package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/calendar"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCalculateBill_ReferenceExample(t *testing.T) {
	tariff := Tariff{Rates: Rates{ColdWater: dec("50"), HotWater: dec("75"), DirtyWater: dec("100")}}
	bill := CalculateBill(Consumption{Cold: dec("10"), Hot: dec("5")}, tariff)

	if !bill.ColdWaterCost.Equal(dec("750")) {
		t.Fatalf("cold cost: %s", bill.ColdWaterCost)
	}
	if !bill.HotWaterCost.Equal(dec("375")) {
		t.Fatalf("hot cost: %s", bill.HotWaterCost)
	}
	if !bill.DirtyWaterCost.Equal(dec("1500")) {
		t.Fatalf("dirty cost: %s", bill.DirtyWaterCost)
	}
	if !bill.Total.Equal(dec("2625")) {
		t.Fatalf("total: %s", bill.Total)
	}
}

func TestCalculateBill_TotalIsSumOfComponents(t *testing.T) {
	cases := []struct {
		cold, hot          string
		coldR, hotR, dirtR string
	}{
		{"0", "0", "1", "1", "1"},
		{"3.125", "0.5", "41.27", "0", "12.5"},
		{"12", "7.25", "0", "88.1", "0"},
		{"0.001", "1000", "0.0001", "3", "9.99"},
	}
	for _, tc := range cases {
		usage := Consumption{Cold: dec(tc.cold), Hot: dec(tc.hot)}
		bill := CalculateBill(usage, Tariff{Rates: Rates{ColdWater: dec(tc.coldR), HotWater: dec(tc.hotR), DirtyWater: dec(tc.dirtR)}})
		sum := bill.ColdWaterCost.Add(bill.HotWaterCost).Add(bill.DirtyWaterCost)
		if !bill.Total.Equal(sum) {
			t.Fatalf("total %s != sum %s", bill.Total, sum)
		}
		if !bill.ColdWaterCost.Equal(usage.Total().Mul(dec(tc.coldR))) {
			t.Fatalf("cold cost must use combined intake: %s", bill.ColdWaterCost)
		}
		if !bill.HotWaterCost.Equal(usage.Hot.Mul(dec(tc.hotR))) {
			t.Fatalf("hot cost must use hot volume only: %s", bill.HotWaterCost)
		}
	}
}

func TestBillRounded(t *testing.T) {
	bill := Bill{Total: dec("10.005"), ColdWaterCost: dec("1.234")}.Rounded()
	if bill.Total.String() != "10.01" || bill.ColdWaterCost.String() != "1.23" {
		t.Fatalf("unexpected rounding: %+v", bill)
	}
}

func TestDueDate(t *testing.T) {
	cases := []struct {
		month calendar.Month
		grace int
		want  time.Time
	}{
		{calendar.Month{Year: 2026, Month: time.January}, 1, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{calendar.Month{Year: 2024, Month: time.January}, 1, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)},
		{calendar.Month{Year: 2025, Month: time.December}, 1, time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)},
		{calendar.Month{Year: 2026, Month: time.March}, 0, time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := DueDate(tc.month, tc.grace, time.UTC); !got.Equal(tc.want) {
			t.Fatalf("DueDate(%s, %d) = %s, want %s", tc.month, tc.grace, got, tc.want)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		status  Status
		payDate time.Time
		want    DisplayStatus
	}{
		{"unpaid 40 days late", StatusUnpaid, now.AddDate(0, 0, -40), DisplayOverdue},
		{"unpaid 10 days late", StatusUnpaid, now.AddDate(0, 0, -10), DisplayPending},
		{"unpaid exactly 30 days late", StatusUnpaid, now.Add(-DefaultOverdueAfter), DisplayPending},
		{"unpaid not yet due", StatusUnpaid, now.AddDate(0, 0, 5), DisplayPending},
		{"paid long ago", StatusPaid, now.AddDate(0, 0, -90), DisplayPaid},
		{"cancelled", StatusCancelled, now.AddDate(0, 0, -90), DisplayCancelled},
		{"stored overdue", StatusOverdue, now.AddDate(0, 0, 5), DisplayOverdue},
	}
	for _, tc := range cases {
		payment := Payment{Status: tc.status, PayDate: tc.payDate}
		if got := DeriveStatus(payment, now, DefaultOverdueAfter); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
		if payment.Status != tc.status {
			t.Fatalf("%s: status mutated", tc.name)
		}
	}
}

func TestPaymentTransitions(t *testing.T) {
	at := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	payment := &Payment{Status: StatusUnpaid}
	if err := payment.MarkPaid(at); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if payment.Status != StatusPaid || payment.PaidDate == nil || !payment.PaidDate.Equal(at) {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if err := payment.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("paid payment must not be cancelled, got %v", err)
	}
	if err := payment.MarkPaid(at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("paid payment must not be paid twice, got %v", err)
	}

	cancelled := &Payment{Status: StatusUnpaid}
	if err := cancelled.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := cancelled.MarkPaid(at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancelled payment must not be paid, got %v", err)
	}
}

func TestTariffCovers(t *testing.T) {
	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	closed := Tariff{EffectiveFrom: from, EffectiveTo: &to}
	if !closed.Covers(from) || closed.Covers(to) || closed.Covers(from.Add(-time.Second)) {
		t.Fatalf("closed range must be half-open")
	}
	open := Tariff{EffectiveFrom: from}
	if !open.Covers(to.AddDate(5, 0, 0)) {
		t.Fatalf("open tariff must cover the future")
	}
	if err := (Rates{ColdWater: dec("-1")}).Validate(); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}
