package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMonth is returned when a month cannot be parsed or is out of range.
var ErrInvalidMonth = errors.New("calendar: invalid month")

const monthLayout = "2006-01"

// Month identifies a calendar month (billing period).
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t, evaluated in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// NewMonth validates and builds a Month.
func NewMonth(year int, month time.Month) (Month, error) {
	if year < 1 || month < time.January || month > time.December {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: year, Month: month}, nil
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(value string) (Month, error) {
	if value == "" {
		return Month{}, ErrInvalidMonth
	}
	t, err := time.Parse(monthLayout, value)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q must be YYYY-MM", ErrInvalidMonth, value)
	}
	return MonthOf(t), nil
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Start returns the first instant of the month in loc.
func (m Month) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// End returns the first instant of the following month in loc (exclusive bound).
func (m Month) End(loc *time.Location) time.Time {
	return m.Next().Start(loc)
}

// LastDay returns midnight of the last calendar day of the month in loc.
func (m Month) LastDay(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, loc)
}

// DaysIn returns the number of days in the month.
func (m Month) DaysIn() int {
	return m.LastDay(time.UTC).Day()
}

// AddMonths shifts the month by n (negative allowed), rolling the year.
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return MonthOf(t)
}

// Next returns the following month.
func (m Month) Next() Month { return m.AddMonths(1) }

// Prev returns the preceding month.
func (m Month) Prev() Month { return m.AddMonths(-1) }

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// String returns the YYYY-MM form.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(data []byte) error {
	parsed, err := ParseMonth(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
