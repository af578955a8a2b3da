package metering

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Apartment is owned by the administration subsystem and read-only here.
type Apartment struct {
	ID         string
	Address    string
	MeterCount int
}

// ExpectedSlots returns the slots this apartment must report.
func (a Apartment) ExpectedSlots() ([]Slot, error) {
	return ExpectedSlots(a.MeterCount)
}

// Reading is one persisted meter indication.
type Reading struct {
	ID          string
	ApartmentID string
	UserID      string
	Slot        Slot
	Indication  decimal.Decimal
	RecordedAt  time.Time
}

// ApartmentRepository loads apartments.
type ApartmentRepository interface {
	// FindByID returns ErrApartmentNotFound when the apartment does not exist.
	FindByID(ctx context.Context, id string) (*Apartment, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ReadingRepository persists meter readings. Time ranges are half-open [from, to).
type ReadingRepository interface {
	InsertBatch(ctx context.Context, readings []Reading) error
	ExistsBetween(ctx context.Context, apartmentID string, from, to time.Time) (bool, error)
	// MaxBySlot returns MAX(indication) per slot; an empty map means no readings.
	MaxBySlot(ctx context.Context, apartmentID string, from, to time.Time) (map[Slot]decimal.Decimal, error)
}
