package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"water-billing/internal/eventing"
	"water-billing/internal/txn"
)

const (
	defaultOutboxTable = "event_outbox"
	// lastErrorLimit caps the stored failure text.
	lastErrorLimit = 1024
)

// OutboxStore keeps envelopes in Postgres until the dispatcher delivers them.
// Envelope metadata lives in columns and the event body in payload, so rows
// can be inspected per apartment without decoding JSON.
type OutboxStore struct {
	db    *sql.DB
	table string
}

// OutboxOption configures the outbox store.
type OutboxOption func(*OutboxStore)

// WithOutboxTable overrides the table name.
func WithOutboxTable(table string) OutboxOption {
	return func(store *OutboxStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore(db *sql.DB, opts ...OutboxOption) *OutboxStore {
	store := &OutboxStore{db: db, table: defaultOutboxTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Insert stores env in the caller's transaction, if any. An event ID already
// in the outbox is not stored twice; the existing row's id is returned.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("outbox store: nil db")
	}
	if env.EventID == "" || env.EventType == "" {
		return "", errors.New("outbox store: envelope without id or type")
	}
	conn := txn.Conn(ctx, s.db)
	insert := fmt.Sprintf(`
INSERT INTO %s (
	id, event_id, event_type, apartment_id, correlation_id,
	schema_version, occurred_at, payload, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (event_id) DO NOTHING
RETURNING id`, s.table)

	var id string
	err := conn.QueryRowContext(ctx, insert,
		eventing.NewEventID(),
		env.EventID,
		env.EventType,
		env.ApartmentID,
		env.CorrelationID,
		env.SchemaVersion,
		env.OccurredAt.UTC(),
		[]byte(env.Payload),
		eventing.OutboxPending,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("outbox store: insert %s: %w", env.EventID, err)
	}
	existing := fmt.Sprintf(`SELECT id FROM %s WHERE event_id = $1`, s.table)
	if err := conn.QueryRowContext(ctx, existing, env.EventID).Scan(&id); err != nil {
		return "", fmt.Errorf("outbox store: lookup %s: %w", env.EventID, err)
	}
	return id, nil
}

// ListPending returns up to limit pending records, oldest first.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("outbox store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, event_id, event_type, apartment_id, correlation_id,
	schema_version, occurred_at, payload, attempts
FROM %s
WHERE status = $1
ORDER BY created_at ASC, id ASC
LIMIT $2`, s.table)

	rows, err := s.db.QueryContext(ctx, query, eventing.OutboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []eventing.OutboxRecord
	for rows.Next() {
		var (
			record  eventing.OutboxRecord
			payload []byte
		)
		env := &record.Envelope
		if err := rows.Scan(
			&record.ID,
			&env.EventID,
			&env.EventType,
			&env.ApartmentID,
			&env.CorrelationID,
			&env.SchemaVersion,
			&env.OccurredAt,
			&payload,
			&record.Attempts,
		); err != nil {
			return nil, err
		}
		env.OccurredAt = env.OccurredAt.UTC()
		env.Payload = payload
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSent records delivery.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.transition(ctx, id, eventing.OutboxSent, nil)
}

// MarkFailed parks the record with its failure text. Failed rows are not
// picked up again; the dead-letter table holds them for replay.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string, cause error) error {
	return s.transition(ctx, id, eventing.OutboxFailed, cause)
}

func (s *OutboxStore) transition(ctx context.Context, id, status string, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("outbox store: nil db")
	}
	var lastError sql.NullString
	if cause != nil {
		text := cause.Error()
		if len(text) > lastErrorLimit {
			text = text[:lastErrorLimit]
		}
		lastError = sql.NullString{String: text, Valid: true}
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $1,
	attempts = attempts + 1,
	sent_at = CASE WHEN $1 = '%s' THEN $2 ELSE sent_at END,
	last_error = COALESCE($3, last_error)
WHERE id = $4 AND status = '%s'`, s.table, eventing.OutboxSent, eventing.OutboxPending)

	// A record another dispatcher already settled is left as it is.
	if _, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), lastError, id); err != nil {
		return fmt.Errorf("outbox store: mark %s %s: %w", id, status, err)
	}
	return nil
}
