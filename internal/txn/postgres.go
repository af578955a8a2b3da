package txn

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresManager implements Manager with database/sql transactions and
// transaction-scoped advisory locks.
type PostgresManager struct {
	db        *sql.DB
	isolation sql.IsolationLevel
}

// PostgresOption configures the manager.
type PostgresOption func(*PostgresManager)

// WithIsolation overrides the isolation level (default READ COMMITTED).
func WithIsolation(level sql.IsolationLevel) PostgresOption {
	return func(m *PostgresManager) {
		m.isolation = level
	}
}

// NewPostgresManager constructs a manager.
func NewPostgresManager(db *sql.DB, opts ...PostgresOption) *PostgresManager {
	m := &PostgresManager{db: db, isolation: sql.LevelReadCommitted}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithinTx implements Manager.
func (m *PostgresManager) WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context) error) (err error) {
	if m == nil || m.db == nil {
		return errors.New("txn: nil db")
	}
	if fn == nil {
		return errors.New("txn: nil func")
	}

	if tx, ok := TxFromContext(ctx); ok {
		if err := lock(ctx, tx, lockKey); err != nil {
			return err
		}
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: m.isolation})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lock(ctx, tx, lockKey); err != nil {
		return err
	}
	if err = fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func lock(ctx context.Context, tx *sql.Tx, key string) error {
	if key == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}
