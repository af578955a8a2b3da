package interfaces

import (
	"context"

	"water-billing/internal/eventing"
	"water-billing/internal/metering/application"
)

// OutboxPublisher writes readings submitted events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishReadingsSubmitted writes the event to the outbox.
func (p *OutboxPublisher) PublishReadingsSubmitted(ctx context.Context, event application.ReadingsSubmitted) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithApartmentID(ctx, event.ApartmentID)
	return p.publisher.Publish(ctx, event)
}
