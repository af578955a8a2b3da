package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"water-billing/internal/calendar"
	"water-billing/internal/metering/domain"
)

// BaselineLocator finds the last known indication per slot before a month.
type BaselineLocator struct {
	readings metering.ReadingRepository
	loc      *time.Location
	lookback int
}

// NewBaselineLocator constructs the locator. lookback is the number of
// previous months searched; values below 1 mean 1.
func NewBaselineLocator(readings metering.ReadingRepository, loc *time.Location, lookback int) (*BaselineLocator, error) {
	if readings == nil {
		return nil, errors.New("baseline locator: nil reading repository")
	}
	if loc == nil {
		loc = time.UTC
	}
	if lookback < 1 {
		lookback = 1
	}
	return &BaselineLocator{readings: readings, loc: loc, lookback: lookback}, nil
}

// Baseline returns MAX(indication) per slot from the month before month. With
// a lookback above one, slots missing there are filled from earlier months,
// nearest first. Slots with no history are absent (zero).
func (l *BaselineLocator) Baseline(ctx context.Context, apartmentID string, month calendar.Month) (metering.Baseline, error) {
	baseline := metering.Baseline{}
	for i := 1; i <= l.lookback; i++ {
		prior := month.AddMonths(-i)
		values, err := l.readings.MaxBySlot(ctx, apartmentID, prior.Start(l.loc), prior.End(l.loc))
		if err != nil {
			return nil, err
		}
		for slot, value := range values {
			if _, ok := baseline[slot]; !ok {
				baseline[slot] = value
			}
		}
	}
	return baseline, nil
}

// UsageCalculator converts a month's readings into billable volumes.
type UsageCalculator struct {
	readings metering.ReadingRepository
	baseline *BaselineLocator
	loc      *time.Location
}

// NewUsageCalculator constructs the calculator.
func NewUsageCalculator(readings metering.ReadingRepository, baseline *BaselineLocator) (*UsageCalculator, error) {
	if readings == nil {
		return nil, errors.New("usage calculator: nil reading repository")
	}
	if baseline == nil {
		return nil, errors.New("usage calculator: nil baseline locator")
	}
	return &UsageCalculator{readings: readings, baseline: baseline, loc: baseline.loc}, nil
}

// MonthlyUsage diffs the month's per-slot maxima against the baseline. A month
// without readings returns ErrNoReadingsForMonth rather than zero usage.
func (c *UsageCalculator) MonthlyUsage(ctx context.Context, apartmentID string, month calendar.Month) (metering.Usage, error) {
	if apartmentID == "" {
		return metering.Usage{}, metering.ErrEmptyApartmentID
	}
	current, err := c.readings.MaxBySlot(ctx, apartmentID, month.Start(c.loc), month.End(c.loc))
	if err != nil {
		return metering.Usage{}, err
	}
	if len(current) == 0 {
		return metering.Usage{}, fmt.Errorf("%w: %s %s", metering.ErrNoReadingsForMonth, apartmentID, month)
	}
	baseline, err := c.baseline.Baseline(ctx, apartmentID, month)
	if err != nil {
		return metering.Usage{}, err
	}
	return metering.ComputeUsage(current, baseline), nil
}
