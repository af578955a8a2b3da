package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/txn"
)

const defaultTariffTable = "tariffs"

// TariffRepository is a Postgres implementation for tariffs.
type TariffRepository struct {
	db    *sql.DB
	table string
}

// TariffOption configures the repository.
type TariffOption func(*TariffRepository)

// WithTariffTable overrides the default table.
func WithTariffTable(table string) TariffOption {
	return func(repo *TariffRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewTariffRepository constructs a repository.
func NewTariffRepository(db *sql.DB, opts ...TariffOption) *TariffRepository {
	repo := &TariffRepository{db: db, table: defaultTariffTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

const tariffColumns = `id, cold_water_rate, hot_water_rate, dirty_water_rate, effective_from, effective_to, is_active, created_at`

// Active returns the newest active tariff.
func (r *TariffRepository) Active(ctx context.Context) (*billing.Tariff, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE is_active
ORDER BY id DESC
LIMIT 1`, tariffColumns, r.table)
	tariff, err := scanTariff(txn.Conn(ctx, r.db).QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrNoTariffConfigured
	}
	return tariff, err
}

// ByID returns a tariff by id.
func (r *TariffRepository) ByID(ctx context.Context, id int64) (*billing.Tariff, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, tariffColumns, r.table)
	tariff, err := scanTariff(txn.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrTariffNotFound
	}
	return tariff, err
}

// At returns the newest tariff whose range covers t.
func (r *TariffRepository) At(ctx context.Context, t time.Time) (*billing.Tariff, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE effective_from <= $1 AND (effective_to IS NULL OR effective_to > $1)
ORDER BY id DESC
LIMIT 1`, tariffColumns, r.table)
	tariff, err := scanTariff(txn.Conn(ctx, r.db).QueryRowContext(ctx, query, t.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrTariffNotFound
	}
	return tariff, err
}

// List returns tariffs newest first.
func (r *TariffRepository) List(ctx context.Context) ([]billing.Tariff, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC`, tariffColumns, r.table)
	rows, err := txn.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []billing.Tariff
	for rows.Next() {
		tariff, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tariff)
	}
	return result, rows.Err()
}

// Close ends a tariff and clears its active flag.
func (r *TariffRepository) Close(ctx context.Context, id int64, effectiveTo time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("tariff repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET effective_to = $2, is_active = FALSE
WHERE id = $1`, r.table)
	res, err := txn.Conn(ctx, r.db).ExecContext(ctx, query, id, effectiveTo.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrTariffNotFound
	}
	return nil
}

// Insert stores a tariff and sets its generated id.
func (r *TariffRepository) Insert(ctx context.Context, tariff *billing.Tariff) error {
	if r == nil || r.db == nil {
		return errors.New("tariff repo: nil db")
	}
	if tariff == nil {
		return errors.New("tariff repo: nil tariff")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	cold_water_rate,
	hot_water_rate,
	dirty_water_rate,
	effective_from,
	effective_to,
	is_active,
	created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
RETURNING id`, r.table)
	var effectiveTo any
	if tariff.EffectiveTo != nil {
		effectiveTo = tariff.EffectiveTo.UTC()
	}
	return txn.Conn(ctx, r.db).QueryRowContext(ctx, query,
		tariff.Rates.ColdWater,
		tariff.Rates.HotWater,
		tariff.Rates.DirtyWater,
		tariff.EffectiveFrom.UTC(),
		effectiveTo,
		tariff.IsActive,
		tariff.CreatedAt.UTC(),
	).Scan(&tariff.ID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTariff(row rowScanner) (*billing.Tariff, error) {
	var tariff billing.Tariff
	var effectiveTo sql.NullTime
	if err := row.Scan(
		&tariff.ID,
		&tariff.Rates.ColdWater,
		&tariff.Rates.HotWater,
		&tariff.Rates.DirtyWater,
		&tariff.EffectiveFrom,
		&effectiveTo,
		&tariff.IsActive,
		&tariff.CreatedAt,
	); err != nil {
		return nil, err
	}
	tariff.EffectiveFrom = tariff.EffectiveFrom.UTC()
	tariff.CreatedAt = tariff.CreatedAt.UTC()
	if effectiveTo.Valid {
		to := effectiveTo.Time.UTC()
		tariff.EffectiveTo = &to
	}
	return &tariff, nil
}
