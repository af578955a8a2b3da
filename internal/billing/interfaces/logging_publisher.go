package interfaces

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"water-billing/internal/billing/application"
)

// LoggingPublisher logs payment generated events. Used when no database
// outbox is configured.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishPaymentGenerated logs the event.
func (p *LoggingPublisher) PublishPaymentGenerated(ctx context.Context, event application.PaymentGenerated) error {
	_ = ctx
	if p == nil {
		return errors.New("payment publisher: nil publisher")
	}
	p.logger.Info("payment generated event",
		zap.String("payment_id", event.PaymentID),
		zap.String("apartment_id", event.ApartmentID),
		zap.String("billing_month", event.BillingMonth.String()),
		zap.String("amount", event.Amount.String()),
	)
	return nil
}
