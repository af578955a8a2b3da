package metering

import "errors"

var (
	// ErrInvalidMeterCount is returned when a meter count is outside 2..5.
	ErrInvalidMeterCount = errors.New("metering: invalid meter count")
	// ErrInvalidReading is returned for an unknown location, unknown type or non-numeric indication.
	ErrInvalidReading = errors.New("metering: invalid reading")
	// ErrUnexpectedSlot is returned when a reading targets a slot the apartment does not have.
	ErrUnexpectedSlot = errors.New("metering: unexpected slot")
	// ErrIncompleteSubmission is returned when expected slots are missing from a batch.
	ErrIncompleteSubmission = errors.New("metering: incomplete submission")
	// ErrSubmissionWindowClosed is returned outside the configured submission days.
	ErrSubmissionWindowClosed = errors.New("metering: submission window closed")
	// ErrAlreadySubmittedThisMonth is returned on a second submission in one calendar month.
	ErrAlreadySubmittedThisMonth = errors.New("metering: already submitted this month")
	// ErrApartmentNotFound is returned when the apartment does not exist.
	ErrApartmentNotFound = errors.New("metering: apartment not found")
	// ErrNoReadingsForMonth is returned when usage is asked for a month without readings.
	ErrNoReadingsForMonth = errors.New("metering: no readings for month")
	ErrEmptyApartmentID  = errors.New("metering: empty apartment id")
	ErrEmptyUserID       = errors.New("metering: empty user id")
)
