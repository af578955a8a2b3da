package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
	"water-billing/internal/observability/metrics"
	"water-billing/internal/txn"
)

// PaymentView is a payment with its display status and bill breakdown.
type PaymentView struct {
	Payment billing.Payment
	Status  billing.DisplayStatus
	Bill    *billing.Bill
}

// PaymentService reads payments and applies payment processing transitions.
type PaymentService struct {
	payments     billing.PaymentRepository
	tariffs      *TariffService
	tx           txn.Manager
	overdueAfter time.Duration
	clock        calendar.Clock
	logger       *zap.Logger
}

// PaymentServiceOption configures the service.
type PaymentServiceOption func(*PaymentService)

// WithOverdueAfter overrides how long past the due date a bill stays pending.
func WithOverdueAfter(d time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		if d >= 0 {
			s.overdueAfter = d
		}
	}
}

// WithPaymentClock overrides the clock.
func WithPaymentClock(clock calendar.Clock) PaymentServiceOption {
	return func(s *PaymentService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPaymentLogger sets the logger.
func WithPaymentLogger(logger *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPaymentService constructs a service.
func NewPaymentService(payments billing.PaymentRepository, tariffs *TariffService, tx txn.Manager, opts ...PaymentServiceOption) (*PaymentService, error) {
	if payments == nil {
		return nil, errors.New("payment service: nil payment repo")
	}
	if tariffs == nil {
		return nil, errors.New("payment service: nil tariff service")
	}
	if tx == nil {
		return nil, errors.New("payment service: nil transaction manager")
	}
	s := &PaymentService{
		payments:     payments,
		tariffs:      tariffs,
		tx:           tx,
		overdueAfter: billing.DefaultOverdueAfter,
		clock:        calendar.SystemClock{},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*billing.Payment, error) {
	if id == "" {
		return nil, billing.ErrPaymentNotFound
	}
	return s.payments.FindByID(ctx, id)
}

// List returns an apartment's payments, newest month first.
func (s *PaymentService) List(ctx context.Context, apartmentID string) ([]billing.Payment, error) {
	if apartmentID == "" {
		return nil, billing.ErrEmptyApartmentID
	}
	return s.payments.ListByApartment(ctx, apartmentID)
}

// View returns the payment with its derived status and the bill recomputed
// from the stamped tariff. A missing tariff leaves Bill nil.
func (s *PaymentService) View(ctx context.Context, id string) (*PaymentView, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.viewOf(*payment)
	tariff, err := s.tariffs.ByID(ctx, payment.TariffID)
	switch {
	case errors.Is(err, billing.ErrTariffNotFound):
	case err != nil:
		return nil, err
	default:
		bill := billing.CalculateBill(payment.Consumption(), *tariff)
		view.Bill = &bill
	}
	return &view, nil
}

// Views derives display status for a list of payments.
func (s *PaymentService) Views(payments []billing.Payment) []PaymentView {
	views := make([]PaymentView, 0, len(payments))
	for _, payment := range payments {
		views = append(views, s.viewOf(payment))
	}
	return views
}

// MarkPaid records payment and stamps the paid date.
func (s *PaymentService) MarkPaid(ctx context.Context, id string) (*billing.Payment, error) {
	return s.transition(ctx, id, func(p *billing.Payment) error {
		return p.MarkPaid(s.clock.Now())
	})
}

// Cancel voids an unpaid payment.
func (s *PaymentService) Cancel(ctx context.Context, id string) (*billing.Payment, error) {
	return s.transition(ctx, id, func(p *billing.Payment) error {
		return p.Cancel()
	})
}

func (s *PaymentService) transition(ctx context.Context, id string, apply func(*billing.Payment) error) (*billing.Payment, error) {
	if id == "" {
		return nil, billing.ErrPaymentNotFound
	}
	var updated *billing.Payment
	err := s.tx.WithinTx(ctx, "payment:"+id, func(ctx context.Context) error {
		payment, err := s.payments.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(payment); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, payment); err != nil {
			return err
		}
		updated = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPaymentTransition(string(updated.Status))
	s.logger.Info("payment status changed",
		zap.String("payment_id", updated.ID),
		zap.String("apartment_id", updated.ApartmentID),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

func (s *PaymentService) viewOf(payment billing.Payment) PaymentView {
	return PaymentView{
		Payment: payment,
		Status:  billing.DeriveStatus(payment, s.clock.Now(), s.overdueAfter),
	}
}
