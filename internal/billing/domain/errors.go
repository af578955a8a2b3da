package billing

import "errors"

var (
	// ErrNoTariffConfigured is returned when no tariff is active. Billing must not proceed.
	ErrNoTariffConfigured = errors.New("billing: no tariff configured")
	// ErrNoReadingsForMonth is returned when a payment is requested for a month
	// the apartment has not reported.
	ErrNoReadingsForMonth = errors.New("billing: no readings for month")
	// ErrTariffNotFound is returned when a tariff id or date has no match.
	ErrTariffNotFound = errors.New("billing: tariff not found")
	// ErrInvalidRate is returned for negative or missing rates.
	ErrInvalidRate = errors.New("billing: invalid rate")
	// ErrInvalidEffectiveFrom is returned when a new tariff starts before the active one.
	ErrInvalidEffectiveFrom = errors.New("billing: effective date precedes active tariff")
	// ErrNegativeUsage is returned when a consumption volume is negative.
	ErrNegativeUsage = errors.New("billing: negative usage")
	// ErrPaymentNotFound is returned when a payment is not found.
	ErrPaymentNotFound = errors.New("billing: payment not found")
	// ErrInvalidTransition is returned when a payment cannot move to the requested status.
	ErrInvalidTransition = errors.New("billing: invalid status transition")
	// ErrEmptyApartmentID is returned when apartment id is empty.
	ErrEmptyApartmentID = errors.New("billing: empty apartment id")
	// ErrNilPayment is returned when saving a nil payment.
	ErrNilPayment = errors.New("billing: nil payment")
)
