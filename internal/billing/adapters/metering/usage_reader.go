package metering

import (
	"context"
	"errors"
	"fmt"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
	meteringapp "water-billing/internal/metering/application"
	metering "water-billing/internal/metering/domain"
)

// UsageReader exposes metering usage as billing consumption.
type UsageReader struct {
	usage *meteringapp.UsageCalculator
}

// NewUsageReader constructs a reader.
func NewUsageReader(usage *meteringapp.UsageCalculator) (*UsageReader, error) {
	if usage == nil {
		return nil, errors.New("usage reader: nil usage calculator")
	}
	return &UsageReader{usage: usage}, nil
}

// MonthlyConsumption returns the month's cold and hot volume. A month with no
// readings is billing.ErrNoReadingsForMonth.
func (r *UsageReader) MonthlyConsumption(ctx context.Context, apartmentID string, month calendar.Month) (billing.Consumption, error) {
	usage, err := r.usage.MonthlyUsage(ctx, apartmentID, month)
	if errors.Is(err, metering.ErrNoReadingsForMonth) {
		return billing.Consumption{}, fmt.Errorf("%w: %s %s", billing.ErrNoReadingsForMonth, apartmentID, month)
	}
	if err != nil {
		return billing.Consumption{}, err
	}
	return billing.Consumption{Cold: usage.Cold, Hot: usage.Hot}, nil
}
