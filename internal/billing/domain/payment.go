package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/calendar"
)

// Status is the persisted payment status.
type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// DefaultGracePeriodMonths puts the due date at the end of the following month.
const DefaultGracePeriodMonths = 1

// Payment is the single bill of an apartment for a billing month.
type Payment struct {
	ID           string
	ApartmentID  string
	UserID       string
	BillingMonth calendar.Month
	Amount       decimal.Decimal
	ColdUsage    decimal.Decimal
	HotUsage     decimal.Decimal
	PayDate      time.Time
	PaidDate     *time.Time
	Status       Status
	TariffID     int64
	CreatedAt    time.Time
}

// DueDate returns the last calendar day of the month graceMonths after month.
func DueDate(month calendar.Month, graceMonths int, loc *time.Location) time.Time {
	if graceMonths < 0 {
		graceMonths = 0
	}
	return month.AddMonths(graceMonths).LastDay(loc)
}

// Consumption returns the stored usage snapshot.
func (p *Payment) Consumption() Consumption {
	return Consumption{Cold: p.ColdUsage, Hot: p.HotUsage}
}

// MarkPaid moves an unpaid or overdue payment to paid.
func (p *Payment) MarkPaid(at time.Time) error {
	if p == nil {
		return ErrNilPayment
	}
	if p.Status != StatusUnpaid && p.Status != StatusOverdue {
		return ErrInvalidTransition
	}
	paid := at.UTC()
	p.Status = StatusPaid
	p.PaidDate = &paid
	return nil
}

// Cancel moves an unpaid or overdue payment to cancelled.
func (p *Payment) Cancel() error {
	if p == nil {
		return ErrNilPayment
	}
	if p.Status != StatusUnpaid && p.Status != StatusOverdue {
		return ErrInvalidTransition
	}
	p.Status = StatusCancelled
	return nil
}
