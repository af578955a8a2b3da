package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
	"water-billing/internal/observability/metrics"
	"water-billing/internal/txn"
)

// SystemUserID is stamped on payments generated outside a resident request.
const SystemUserID = "system"

// UsageReader provides a month's billable consumption. It returns
// billing.ErrNoReadingsForMonth when the apartment has not reported the month.
type UsageReader interface {
	MonthlyConsumption(ctx context.Context, apartmentID string, month calendar.Month) (billing.Consumption, error)
}

// ApartmentLister lists apartments for batch generation.
type ApartmentLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// PaymentPublisher emits payment events.
type PaymentPublisher interface {
	PublishPaymentGenerated(ctx context.Context, event PaymentGenerated) error
}

// PaymentGenerated is emitted once when a payment row is created.
type PaymentGenerated struct {
	PaymentID    string          `json:"payment_id"`
	ApartmentID  string          `json:"apartment_id"`
	BillingMonth calendar.Month  `json:"billing_month"`
	Amount       decimal.Decimal `json:"amount"`
	ColdUsage    decimal.Decimal `json:"cold_usage"`
	HotUsage     decimal.Decimal `json:"hot_usage"`
	TariffID     int64           `json:"tariff_id"`
	PayDate      time.Time       `json:"pay_date"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

func (PaymentGenerated) EventName() string { return "billing.payment_generated" }

// GenerateRequest identifies the payment to create or fetch.
type GenerateRequest struct {
	ApartmentID string
	UserID      string
	Month       calendar.Month
}

// GenerateResult is the stored payment plus the bill it was priced with.
// Existed is true when the payment was already there; it is not an error.
type GenerateResult struct {
	Payment billing.Payment
	Bill    billing.Bill
	Existed bool
}

// BatchResult summarizes GenerateMonth.
type BatchResult struct {
	Month    calendar.Month    `json:"month"`
	Created  int               `json:"created"`
	Existing int               `json:"existing"`
	Skipped  int               `json:"skipped"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// GenerationPolicy holds due date rules.
type GenerationPolicy struct {
	GracePeriodMonths int
	Location          *time.Location
}

// DefaultGenerationPolicy is due at the end of the following month, in UTC.
func DefaultGenerationPolicy() GenerationPolicy {
	return GenerationPolicy{GracePeriodMonths: billing.DefaultGracePeriodMonths, Location: time.UTC}
}

// PaymentGenerator creates exactly one payment per apartment and month.
type PaymentGenerator struct {
	payments   billing.PaymentRepository
	tariffs    *TariffService
	usage      UsageReader
	apartments ApartmentLister
	tx         txn.Manager
	publisher  PaymentPublisher
	policy     GenerationPolicy
	clock      calendar.Clock
	logger     *zap.Logger
}

// GeneratorOption configures the generator.
type GeneratorOption func(*PaymentGenerator)

// WithPaymentPublisher sets the event publisher.
func WithPaymentPublisher(publisher PaymentPublisher) GeneratorOption {
	return func(g *PaymentGenerator) { g.publisher = publisher }
}

// WithApartmentLister enables GenerateMonth.
func WithApartmentLister(apartments ApartmentLister) GeneratorOption {
	return func(g *PaymentGenerator) { g.apartments = apartments }
}

// WithGeneratorClock overrides the clock.
func WithGeneratorClock(clock calendar.Clock) GeneratorOption {
	return func(g *PaymentGenerator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger *zap.Logger) GeneratorOption {
	return func(g *PaymentGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewPaymentGenerator constructs a generator.
func NewPaymentGenerator(
	payments billing.PaymentRepository,
	tariffs *TariffService,
	usage UsageReader,
	tx txn.Manager,
	policy GenerationPolicy,
	opts ...GeneratorOption,
) (*PaymentGenerator, error) {
	if payments == nil {
		return nil, errors.New("payment generator: nil payment repo")
	}
	if tariffs == nil {
		return nil, errors.New("payment generator: nil tariff service")
	}
	if usage == nil {
		return nil, errors.New("payment generator: nil usage reader")
	}
	if tx == nil {
		return nil, errors.New("payment generator: nil transaction manager")
	}
	if policy.GracePeriodMonths < 0 {
		return nil, errors.New("payment generator: negative grace period")
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	g := &PaymentGenerator{
		payments: payments,
		tariffs:  tariffs,
		usage:    usage,
		tx:       tx,
		policy:   policy,
		clock:    calendar.SystemClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns the month's payment, creating it on first call. The
// existence check and insert run under a lock on (apartment, month) and the
// insert itself skips on the unique index, so concurrent callers converge on
// one row. A month without readings is refused with ErrNoReadingsForMonth so
// no payment is frozen before the readings arrive.
func (g *PaymentGenerator) Generate(ctx context.Context, req GenerateRequest) (result GenerateResult, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.ResultCreated
		switch {
		case errors.Is(err, billing.ErrNoReadingsForMonth):
			outcome = metrics.ResultRejected
		case err != nil:
			outcome = metrics.ResultError
		case result.Existed:
			outcome = metrics.ResultExisting
		}
		metrics.ObservePaymentGenerate(outcome, time.Since(start))
	}()

	if req.ApartmentID == "" {
		return GenerateResult{}, billing.ErrEmptyApartmentID
	}
	if req.Month.IsZero() {
		return GenerateResult{}, calendar.ErrInvalidMonth
	}
	if req.UserID == "" {
		req.UserID = SystemUserID
	}

	lockKey := fmt.Sprintf("payments:%s:%s", req.ApartmentID, req.Month)
	err = g.tx.WithinTx(ctx, lockKey, func(ctx context.Context) error {
		existing, err := g.payments.FindByApartmentMonth(ctx, req.ApartmentID, req.Month)
		if err != nil {
			return err
		}
		if existing != nil {
			result, err = g.existingResult(ctx, existing)
			return err
		}

		usage, err := g.usage.MonthlyConsumption(ctx, req.ApartmentID, req.Month)
		if err != nil {
			return err
		}
		if err := usage.Validate(); err != nil {
			return err
		}
		tariff, err := g.tariffs.Active(ctx)
		if err != nil {
			return err
		}
		bill := billing.CalculateBill(usage, *tariff)

		now := g.clock.Now().UTC()
		payment := &billing.Payment{
			ID:           uuid.NewString(),
			ApartmentID:  req.ApartmentID,
			UserID:       req.UserID,
			BillingMonth: req.Month,
			Amount:       bill.Total,
			ColdUsage:    usage.Cold,
			HotUsage:     usage.Hot,
			PayDate:      billing.DueDate(req.Month, g.policy.GracePeriodMonths, g.policy.Location),
			Status:       billing.StatusUnpaid,
			TariffID:     tariff.ID,
			CreatedAt:    now,
		}
		inserted, err := g.payments.InsertIfAbsent(ctx, payment)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := g.payments.FindByApartmentMonth(ctx, req.ApartmentID, req.Month)
			if err != nil {
				return err
			}
			if existing == nil {
				return billing.ErrPaymentNotFound
			}
			result, err = g.existingResult(ctx, existing)
			return err
		}

		result = GenerateResult{Payment: *payment, Bill: bill}
		if g.publisher == nil {
			return nil
		}
		return g.publisher.PublishPaymentGenerated(ctx, PaymentGenerated{
			PaymentID:    payment.ID,
			ApartmentID:  payment.ApartmentID,
			BillingMonth: payment.BillingMonth,
			Amount:       payment.Amount,
			ColdUsage:    payment.ColdUsage,
			HotUsage:     payment.HotUsage,
			TariffID:     payment.TariffID,
			PayDate:      payment.PayDate,
			OccurredAt:   now,
		})
	})
	if err != nil {
		return GenerateResult{}, err
	}

	g.logger.Info("payment generated",
		zap.String("payment_id", result.Payment.ID),
		zap.String("apartment_id", req.ApartmentID),
		zap.String("month", req.Month.String()),
		zap.String("amount", result.Payment.Amount.String()),
		zap.Bool("existed", result.Existed),
	)
	return result, nil
}

// GenerateMonth runs Generate for every apartment. Apartments that have not
// reported the month are skipped. Failures are collected per apartment; a
// missing tariff aborts the run since every apartment would fail.
func (g *PaymentGenerator) GenerateMonth(ctx context.Context, month calendar.Month) (BatchResult, error) {
	if g.apartments == nil {
		return BatchResult{}, errors.New("payment generator: no apartment lister")
	}
	ids, err := g.apartments.ListIDs(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	batch := BatchResult{Month: month}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		result, err := g.Generate(ctx, GenerateRequest{ApartmentID: id, UserID: SystemUserID, Month: month})
		if err != nil {
			if errors.Is(err, billing.ErrNoTariffConfigured) {
				return batch, err
			}
			if errors.Is(err, billing.ErrNoReadingsForMonth) {
				batch.Skipped++
				continue
			}
			if batch.Failed == nil {
				batch.Failed = make(map[string]string)
			}
			batch.Failed[id] = err.Error()
			g.logger.Warn("payment generation failed", zap.String("apartment_id", id), zap.Error(err))
			continue
		}
		if result.Existed {
			batch.Existing++
		} else {
			batch.Created++
		}
	}
	return batch, nil
}

// existingResult reprices a stored payment from its stamped tariff so the bill
// breakdown matches the stored amount. The amount itself is never recomputed.
func (g *PaymentGenerator) existingResult(ctx context.Context, payment *billing.Payment) (GenerateResult, error) {
	result := GenerateResult{Payment: *payment, Existed: true}
	tariff, err := g.tariffs.ByID(ctx, payment.TariffID)
	if err != nil {
		if errors.Is(err, billing.ErrTariffNotFound) {
			result.Bill = billing.Bill{Total: payment.Amount}
			return result, nil
		}
		return GenerateResult{}, err
	}
	result.Bill = billing.CalculateBill(payment.Consumption(), *tariff)
	result.Bill.Total = payment.Amount
	return result, nil
}
