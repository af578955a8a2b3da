package billing

import (
	"context"
	"time"

	"water-billing/internal/calendar"
)

// TariffRepository persists tariffs.
type TariffRepository interface {
	// Active returns the newest active tariff, or ErrNoTariffConfigured.
	Active(ctx context.Context) (*Tariff, error)
	ByID(ctx context.Context, id int64) (*Tariff, error)
	// At returns the tariff whose effective range covers t, or ErrTariffNotFound.
	At(ctx context.Context, t time.Time) (*Tariff, error)
	List(ctx context.Context) ([]Tariff, error)
	// Close ends the tariff at effectiveTo and clears its active flag.
	Close(ctx context.Context, id int64, effectiveTo time.Time) error
	Insert(ctx context.Context, tariff *Tariff) error
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	// InsertIfAbsent stores payment unless one exists for its apartment and
	// month. It reports whether the row was written.
	InsertIfAbsent(ctx context.Context, payment *Payment) (bool, error)
	// FindByApartmentMonth returns nil without error when no payment exists.
	FindByApartmentMonth(ctx context.Context, apartmentID string, month calendar.Month) (*Payment, error)
	// FindByID returns ErrPaymentNotFound for unknown ids.
	FindByID(ctx context.Context, id string) (*Payment, error)
	ListByApartment(ctx context.Context, apartmentID string) ([]Payment, error)
	UpdateStatus(ctx context.Context, payment *Payment) error
}
