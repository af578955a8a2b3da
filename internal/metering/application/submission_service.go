package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"water-billing/internal/calendar"
	"water-billing/internal/metering/domain"
	"water-billing/internal/observability/metrics"
	"water-billing/internal/txn"
)

// SubmitRequest is a batch from an authenticated resident.
type SubmitRequest struct {
	UserID      string
	ApartmentID string
	Entries     []metering.Entry
}

// PaymentSummary is what the billing context reports back after a submission.
type PaymentSummary struct {
	ID      string          `json:"id"`
	Month   calendar.Month  `json:"month"`
	Amount  decimal.Decimal `json:"amount"`
	PayDate time.Time       `json:"pay_date"`
	Status  string          `json:"status"`
	Existed bool            `json:"existed"`
}

// SubmitResult is returned on an accepted submission.
type SubmitResult struct {
	Month    calendar.Month
	Readings []metering.Reading
	Usage    metering.Usage
	Warnings []metering.Warning
	Payment  *PaymentSummary
}

// ReadingsSubmitted is emitted once per accepted batch.
type ReadingsSubmitted struct {
	ApartmentID string          `json:"apartment_id"`
	UserID      string          `json:"user_id"`
	Month       calendar.Month  `json:"month"`
	ColdUsage   decimal.Decimal `json:"cold_usage"`
	HotUsage    decimal.Decimal `json:"hot_usage"`
	Warnings    int             `json:"warnings"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (ReadingsSubmitted) EventName() string { return "metering.readings_submitted" }

// ErrBillingUnavailable wraps payment generation failures the caller should
// see verbatim, such as a missing tariff.
var ErrBillingUnavailable = errors.New("metering: billing unavailable")

// PaymentGenerator creates or returns the month's payment once readings are stored.
type PaymentGenerator interface {
	GeneratePayment(ctx context.Context, apartmentID, userID string, month calendar.Month) (PaymentSummary, error)
}

// ReadingsPublisher emits submission events.
type ReadingsPublisher interface {
	PublishReadingsSubmitted(ctx context.Context, event ReadingsSubmitted) error
}

// Policy holds the operator-tunable submission rules.
type Policy struct {
	Window                    metering.WindowPolicy
	Location                  *time.Location
	BaselineLookbackMonths    int
	SignificantDeltaThreshold decimal.Decimal
}

// DefaultPolicy accepts readings all month in UTC and looks back one month.
func DefaultPolicy() Policy {
	return Policy{
		Window:                 metering.DefaultWindowPolicy(),
		Location:               time.UTC,
		BaselineLookbackMonths: 1,
	}
}

// SubmissionService accepts monthly reading batches.
type SubmissionService struct {
	apartments metering.ApartmentRepository
	readings   metering.ReadingRepository
	usage      *UsageCalculator
	tx         txn.Manager
	payments   PaymentGenerator
	publisher  ReadingsPublisher
	policy     Policy
	clock      calendar.Clock
	logger     *zap.Logger
}

// SubmissionOption configures the service.
type SubmissionOption func(*SubmissionService)

// WithPaymentGenerator generates the month's payment inside the submission transaction.
func WithPaymentGenerator(payments PaymentGenerator) SubmissionOption {
	return func(s *SubmissionService) { s.payments = payments }
}

// WithReadingsPublisher sets the event publisher.
func WithReadingsPublisher(publisher ReadingsPublisher) SubmissionOption {
	return func(s *SubmissionService) { s.publisher = publisher }
}

// WithClock overrides the clock.
func WithClock(clock calendar.Clock) SubmissionOption {
	return func(s *SubmissionService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) SubmissionOption {
	return func(s *SubmissionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubmissionService constructs the service.
func NewSubmissionService(
	apartments metering.ApartmentRepository,
	readings metering.ReadingRepository,
	tx txn.Manager,
	policy Policy,
	opts ...SubmissionOption,
) (*SubmissionService, error) {
	if apartments == nil {
		return nil, errors.New("submission service: nil apartment repository")
	}
	if readings == nil {
		return nil, errors.New("submission service: nil reading repository")
	}
	if tx == nil {
		return nil, errors.New("submission service: nil transaction manager")
	}
	if err := policy.Window.Validate(); err != nil {
		return nil, err
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	locator, err := NewBaselineLocator(readings, policy.Location, policy.BaselineLookbackMonths)
	if err != nil {
		return nil, err
	}
	usage, err := NewUsageCalculator(readings, locator)
	if err != nil {
		return nil, err
	}

	s := &SubmissionService{
		apartments: apartments,
		readings:   readings,
		usage:      usage,
		tx:         tx,
		policy:     policy,
		clock:      calendar.SystemClock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ExpectedSlots returns the slots the apartment must report.
func (s *SubmissionService) ExpectedSlots(ctx context.Context, apartmentID string) ([]metering.Slot, error) {
	apartment, err := s.loadApartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	return apartment.ExpectedSlots()
}

// WindowStatus reports both gate checks for the current month. Read-only.
func (s *SubmissionService) WindowStatus(ctx context.Context, apartmentID string) (metering.WindowStatus, error) {
	if _, err := s.loadApartment(ctx, apartmentID); err != nil {
		return metering.WindowStatus{}, err
	}
	return s.windowStatus(ctx, apartmentID, s.now())
}

// Submit validates and stores a full batch, then generates the month's payment.
// The once-per-month check, the inserts and payment generation share one
// transaction locked on the apartment and month.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (result SubmitResult, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.ResultSuccess
		if err != nil {
			outcome = metrics.ResultError
			if reason := rejectionReason(err); reason != "" {
				outcome = metrics.ResultRejected
				metrics.IncSubmissionRejected(reason)
			}
		}
		metrics.ObserveSubmission(outcome, time.Since(start))
	}()

	if req.UserID == "" {
		return SubmitResult{}, metering.ErrEmptyUserID
	}
	apartment, err := s.loadApartment(ctx, req.ApartmentID)
	if err != nil {
		return SubmitResult{}, err
	}
	expected, err := apartment.ExpectedSlots()
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	month := calendar.MonthOf(now)
	status, err := s.windowStatus(ctx, apartment.ID, now)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := status.Err(); err != nil {
		return SubmitResult{}, err
	}

	values, err := metering.ValidateBatch(expected, req.Entries)
	if err != nil {
		return SubmitResult{}, err
	}

	lockKey := fmt.Sprintf("readings:%s:%s", apartment.ID, month)
	err = s.tx.WithinTx(ctx, lockKey, func(ctx context.Context) error {
		exists, err := s.readings.ExistsBetween(ctx, apartment.ID, month.Start(s.policy.Location), month.End(s.policy.Location))
		if err != nil {
			return err
		}
		if exists {
			return metering.ErrAlreadySubmittedThisMonth
		}

		readings := make([]metering.Reading, 0, len(values))
		for _, value := range values {
			readings = append(readings, metering.Reading{
				ID:          uuid.NewString(),
				ApartmentID: apartment.ID,
				UserID:      req.UserID,
				Slot:        value.Slot,
				Indication:  value.Indication,
				RecordedAt:  now.UTC(),
			})
		}
		if err := s.readings.InsertBatch(ctx, readings); err != nil {
			return err
		}

		usage, err := s.usage.MonthlyUsage(ctx, apartment.ID, month)
		if err != nil {
			return err
		}
		result = SubmitResult{
			Month:    month,
			Readings: readings,
			Usage:    usage,
			Warnings: metering.CompareReadings(usage, s.policy.SignificantDeltaThreshold),
		}

		if s.payments != nil {
			summary, err := s.payments.GeneratePayment(ctx, apartment.ID, req.UserID, month)
			if err != nil {
				return err
			}
			result.Payment = &summary
		}

		if s.publisher == nil {
			return nil
		}
		return s.publisher.PublishReadingsSubmitted(ctx, ReadingsSubmitted{
			ApartmentID: apartment.ID,
			UserID:      req.UserID,
			Month:       month,
			ColdUsage:   usage.Cold,
			HotUsage:    usage.Hot,
			Warnings:    len(result.Warnings),
			OccurredAt:  now.UTC(),
		})
	})
	if err != nil {
		return SubmitResult{}, err
	}

	metrics.AddClampedSlots(result.Usage.ClampedSlots())
	s.logger.Info("readings submitted",
		zap.String("apartment_id", apartment.ID),
		zap.String("month", month.String()),
		zap.String("cold_usage", result.Usage.Cold.String()),
		zap.String("hot_usage", result.Usage.Hot.String()),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *SubmissionService) loadApartment(ctx context.Context, apartmentID string) (*metering.Apartment, error) {
	if apartmentID == "" {
		return nil, metering.ErrEmptyApartmentID
	}
	apartment, err := s.apartments.FindByID(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	if apartment == nil {
		return nil, metering.ErrApartmentNotFound
	}
	return apartment, nil
}

func (s *SubmissionService) windowStatus(ctx context.Context, apartmentID string, now time.Time) (metering.WindowStatus, error) {
	month := calendar.MonthOf(now)
	exists, err := s.readings.ExistsBetween(ctx, apartmentID, month.Start(s.policy.Location), month.End(s.policy.Location))
	if err != nil {
		return metering.WindowStatus{}, err
	}
	return metering.NewWindowStatus(month, s.policy.Window.IsOpen(now), !exists), nil
}

func (s *SubmissionService) now() time.Time {
	return s.clock.Now().In(s.policy.Location)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, metering.ErrInvalidReading):
		return "invalid_reading"
	case errors.Is(err, metering.ErrUnexpectedSlot):
		return "unexpected_slot"
	case errors.Is(err, metering.ErrIncompleteSubmission):
		return "incomplete_submission"
	case errors.Is(err, metering.ErrSubmissionWindowClosed):
		return "window_closed"
	case errors.Is(err, metering.ErrAlreadySubmittedThisMonth):
		return "already_submitted"
	case errors.Is(err, metering.ErrApartmentNotFound):
		return "apartment_not_found"
	default:
		return ""
	}
}
