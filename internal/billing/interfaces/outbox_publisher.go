package interfaces

import (
	"context"

	"water-billing/internal/billing/application"
	"water-billing/internal/eventing"
)

// OutboxPublisher writes payment generated events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishPaymentGenerated writes event to outbox.
func (p *OutboxPublisher) PublishPaymentGenerated(ctx context.Context, event application.PaymentGenerated) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithApartmentID(ctx, event.ApartmentID)
	return p.publisher.Publish(ctx, event)
}
