package eventing

import (
	"context"
	"fmt"
	"time"

	"water-billing/internal/observability/metrics"
)

// ProcessedStore records which consumer has handled which event.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, consumerName string) error
}

// Consumer is a named handler that sees each event ID at most once. Events
// delivered without an envelope in ctx bypass the check.
type Consumer struct {
	Name    string
	Handler EventHandler
	Store   ProcessedStore
}

// Handle runs the handler unless the event was already processed by this
// consumer. The event is only marked once the handler succeeds, so a failed
// delivery is retried on the next dispatch.
func (c Consumer) Handle(ctx context.Context, event any) error {
	env, ok := EnvelopeFromContext(ctx)
	if c.Store == nil || !ok || env.EventID == "" {
		return c.Handler(ctx, event)
	}
	done, err := c.Store.HasProcessed(ctx, env.EventID, c.Name)
	if err != nil {
		return fmt.Errorf("consumer %s: processed lookup: %w", c.Name, err)
	}
	if done {
		return nil
	}
	if !env.OccurredAt.IsZero() {
		metrics.ObserveConsumerLag(c.Name, time.Since(env.OccurredAt))
	}
	if err := c.Handler(ctx, event); err != nil {
		return err
	}
	if err := c.Store.MarkProcessed(ctx, env.EventID, c.Name); err != nil {
		return fmt.Errorf("consumer %s: mark processed: %w", c.Name, err)
	}
	return nil
}

// Subscribe registers handler on bus as the named consumer of eventType.
func Subscribe(bus Bus, eventType, consumerName string, handler EventHandler, store ProcessedStore) {
	bus.Subscribe(eventType, Consumer{Name: consumerName, Handler: handler, Store: store}.Handle)
}
