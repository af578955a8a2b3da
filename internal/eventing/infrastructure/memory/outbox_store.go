package memory

import (
	"context"
	"sync"

	"water-billing/internal/eventing"
)

// OutboxStore keeps outbox records in memory for tests and local runs. Like
// the Postgres store it keeps one record per event ID.
type OutboxStore struct {
	mu      sync.Mutex
	order   []string
	byEvent map[string]string
	records map[string]*outboxRecord
}

type outboxRecord struct {
	env       eventing.Envelope
	status    string
	attempts  int
	lastError string
}

// NewOutboxStore constructs an in-memory outbox.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{
		byEvent: make(map[string]string),
		records: make(map[string]*outboxRecord),
	}
}

// Insert appends a pending record unless the event ID is already stored.
func (s *OutboxStore) Insert(_ context.Context, env eventing.Envelope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEvent[env.EventID]; ok && env.EventID != "" {
		return id, nil
	}
	id := eventing.NewEventID()
	s.order = append(s.order, id)
	s.byEvent[env.EventID] = id
	s.records[id] = &outboxRecord{env: env, status: eventing.OutboxPending}
	return id, nil
}

// ListPending returns pending records in insertion order.
func (s *OutboxStore) ListPending(_ context.Context, limit int) ([]eventing.OutboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventing.OutboxRecord
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if rec := s.records[id]; rec.status == eventing.OutboxPending {
			out = append(out, eventing.OutboxRecord{ID: id, Envelope: rec.env, Attempts: rec.attempts})
		}
	}
	return out, nil
}

// MarkSent marks a pending record sent.
func (s *OutboxStore) MarkSent(_ context.Context, id string) error {
	s.settle(id, eventing.OutboxSent, nil)
	return nil
}

// MarkFailed marks a pending record failed and keeps the cause.
func (s *OutboxStore) MarkFailed(_ context.Context, id string, cause error) error {
	s.settle(id, eventing.OutboxFailed, cause)
	return nil
}

func (s *OutboxStore) settle(id, status string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.status != eventing.OutboxPending {
		return
	}
	rec.status = status
	rec.attempts++
	if cause != nil {
		rec.lastError = cause.Error()
	}
}

// LastError returns the recorded failure for an event ID.
func (s *OutboxStore) LastError(eventID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[s.byEvent[eventID]]; ok {
		return rec.lastError
	}
	return ""
}

// Envelopes returns every inserted envelope in order.
func (s *OutboxStore) Envelopes() []eventing.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eventing.Envelope, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].env)
	}
	return out
}
