package eventing

import (
	"context"

	"water-billing/internal/txn"
)

// Publisher writes events to the outbox and triggers dispatch.
type Publisher struct {
	outbox   OutboxWriter
	dispatch *Dispatcher
}

// OutboxWriter inserts outbox records. Implementations join the transaction
// carried in ctx so the event commits with the state change that caused it.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter, dispatch *Dispatcher) *Publisher {
	return &Publisher{outbox: outbox, dispatch: dispatch}
}

// Publish writes the event to the outbox. Outside a transaction it also
// dispatches immediately; inside one, delivery waits for the dispatch loop.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return err
	}
	if _, inTx := txn.TxFromContext(ctx); inTx || p.dispatch == nil {
		return nil
	}
	_, _ = p.dispatch.Dispatch(ctx, 1)
	return nil
}
