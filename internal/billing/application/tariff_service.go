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

const tariffLockKey = "tariffs:active"

// TariffService resolves and replaces tariffs.
type TariffService struct {
	repo   billing.TariffRepository
	tx     txn.Manager
	clock  calendar.Clock
	logger *zap.Logger
}

// TariffOption configures the service.
type TariffOption func(*TariffService)

// WithTariffClock overrides the clock.
func WithTariffClock(clock calendar.Clock) TariffOption {
	return func(s *TariffService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTariffLogger sets the logger.
func WithTariffLogger(logger *zap.Logger) TariffOption {
	return func(s *TariffService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTariffService constructs a service.
func NewTariffService(repo billing.TariffRepository, tx txn.Manager, opts ...TariffOption) (*TariffService, error) {
	if repo == nil {
		return nil, errors.New("tariff service: nil repo")
	}
	if tx == nil {
		return nil, errors.New("tariff service: nil transaction manager")
	}
	s := &TariffService{repo: repo, tx: tx, clock: calendar.SystemClock{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Active returns the current tariff. With none active it fails with
// ErrNoTariffConfigured; it never falls back to zero rates.
func (s *TariffService) Active(ctx context.Context) (*billing.Tariff, error) {
	tariff, err := s.repo.Active(ctx)
	if err != nil {
		if errors.Is(err, billing.ErrNoTariffConfigured) {
			metrics.IncTariffResolveFailure("no_active")
		} else {
			metrics.IncTariffResolveFailure("datastore")
		}
		return nil, err
	}
	return tariff, nil
}

// ByID returns a historical tariff, e.g. the one stamped on a payment.
func (s *TariffService) ByID(ctx context.Context, id int64) (*billing.Tariff, error) {
	return s.repo.ByID(ctx, id)
}

// At returns the tariff effective at t.
func (s *TariffService) At(ctx context.Context, t time.Time) (*billing.Tariff, error) {
	return s.repo.At(ctx, t)
}

// List returns every tariff, newest first.
func (s *TariffService) List(ctx context.Context) ([]billing.Tariff, error) {
	return s.repo.List(ctx)
}

// Create closes the active tariff and inserts the new one in one transaction.
// A zero effectiveFrom means now.
func (s *TariffService) Create(ctx context.Context, rates billing.Rates, effectiveFrom time.Time) (*billing.Tariff, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if effectiveFrom.IsZero() {
		effectiveFrom = now
	}
	effectiveFrom = effectiveFrom.UTC()

	var created *billing.Tariff
	err := s.tx.WithinTx(ctx, tariffLockKey, func(ctx context.Context) error {
		current, err := s.repo.Active(ctx)
		switch {
		case errors.Is(err, billing.ErrNoTariffConfigured):
		case err != nil:
			return err
		default:
			if effectiveFrom.Before(current.EffectiveFrom) {
				return billing.ErrInvalidEffectiveFrom
			}
			if err := s.repo.Close(ctx, current.ID, effectiveFrom); err != nil {
				return err
			}
		}
		tariff := &billing.Tariff{
			Rates:         rates,
			EffectiveFrom: effectiveFrom,
			IsActive:      true,
			CreatedAt:     now,
		}
		if err := s.repo.Insert(ctx, tariff); err != nil {
			return err
		}
		created = tariff
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tariff created",
		zap.Int64("tariff_id", created.ID),
		zap.String("cold_water_rate", rates.ColdWater.String()),
		zap.String("hot_water_rate", rates.HotWater.String()),
		zap.String("dirty_water_rate", rates.DirtyWater.String()),
		zap.Time("effective_from", effectiveFrom),
	)
	return created, nil
}
