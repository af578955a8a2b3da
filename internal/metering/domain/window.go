package metering

import (
	"fmt"
	"time"

	"water-billing/internal/calendar"
)

// WindowPolicy is the day-of-month range in which readings are accepted.
// A close day past the end of a month means the last day of that month.
type WindowPolicy struct {
	OpenDay  int
	CloseDay int
}

// DefaultWindowPolicy accepts readings on every day of the month.
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{OpenDay: 1, CloseDay: 31}
}

// Validate checks the day range.
func (p WindowPolicy) Validate() error {
	if p.OpenDay < 1 || p.OpenDay > 31 || p.CloseDay < 1 || p.CloseDay > 31 {
		return fmt.Errorf("metering: window days must be within 1..31, got %d..%d", p.OpenDay, p.CloseDay)
	}
	if p.OpenDay > p.CloseDay {
		return fmt.Errorf("metering: window open day %d after close day %d", p.OpenDay, p.CloseDay)
	}
	return nil
}

// IsOpen reports whether local falls inside the window. local must already be
// in the billing time zone.
func (p WindowPolicy) IsOpen(local time.Time) bool {
	day := local.Day()
	closeDay := p.CloseDay
	if last := calendar.MonthOf(local).DaysIn(); closeDay > last {
		closeDay = last
	}
	return day >= p.OpenDay && day <= closeDay
}

// WindowStatus explains whether a new batch may be accepted.
type WindowStatus struct {
	Month           calendar.Month `json:"month"`
	WithinWindow    bool           `json:"within_window"`
	NotYetSubmitted bool           `json:"not_yet_submitted"`
	Open            bool           `json:"open"`
}

// NewWindowStatus combines both checks.
func NewWindowStatus(month calendar.Month, withinWindow, notYetSubmitted bool) WindowStatus {
	return WindowStatus{
		Month:           month,
		WithinWindow:    withinWindow,
		NotYetSubmitted: notYetSubmitted,
		Open:            withinWindow && notYetSubmitted,
	}
}

// Err returns the rejection reason for a closed window, or nil.
func (s WindowStatus) Err() error {
	switch {
	case !s.WithinWindow:
		return ErrSubmissionWindowClosed
	case !s.NotYetSubmitted:
		return ErrAlreadySubmittedThisMonth
	default:
		return nil
	}
}
