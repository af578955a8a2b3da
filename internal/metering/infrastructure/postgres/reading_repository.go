package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/metering/domain"
	"water-billing/internal/txn"
)

const (
	defaultReadingTable   = "meter_readings"
	defaultApartmentTable = "apartments"
)

// ReadingRepository is a Postgres implementation for meter readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// ReadingOption configures the repository.
type ReadingOption func(*ReadingRepository)

// WithReadingTable overrides the default table.
func WithReadingTable(table string) ReadingOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB, opts ...ReadingOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertBatch writes all readings inside the caller's transaction, if any.
func (r *ReadingRepository) InsertBatch(ctx context.Context, readings []metering.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if len(readings) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	apartment_id,
	user_id,
	location,
	water_type,
	indication,
	recorded_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)`, r.table)

	conn := txn.Conn(ctx, r.db)
	for _, reading := range readings {
		if reading.ApartmentID == "" {
			return metering.ErrEmptyApartmentID
		}
		_, err := conn.ExecContext(ctx, query,
			reading.ID,
			reading.ApartmentID,
			reading.UserID,
			string(reading.Slot.Location),
			int(reading.Slot.Type),
			reading.Indication,
			reading.RecordedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("reading repo: insert %s: %w", reading.Slot, err)
		}
	}
	return nil
}

// ExistsBetween reports whether the apartment has any reading in [from, to).
func (r *ReadingRepository) ExistsBetween(ctx context.Context, apartmentID string, from, to time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s
	WHERE apartment_id = $1 AND recorded_at >= $2 AND recorded_at < $3
)`, r.table)
	var exists bool
	if err := txn.Conn(ctx, r.db).QueryRowContext(ctx, query, apartmentID, from.UTC(), to.UTC()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MaxBySlot returns MAX(indication) per slot in [from, to).
func (r *ReadingRepository) MaxBySlot(ctx context.Context, apartmentID string, from, to time.Time) (map[metering.Slot]decimal.Decimal, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT location, water_type, MAX(indication)
FROM %s
WHERE apartment_id = $1 AND recorded_at >= $2 AND recorded_at < $3
GROUP BY location, water_type`, r.table)

	rows, err := txn.Conn(ctx, r.db).QueryContext(ctx, query, apartmentID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[metering.Slot]decimal.Decimal)
	for rows.Next() {
		var location string
		var waterType int
		var indication decimal.Decimal
		if err := rows.Scan(&location, &waterType, &indication); err != nil {
			return nil, err
		}
		result[metering.Slot{Location: metering.Location(location), Type: metering.WaterType(waterType)}] = indication
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ApartmentRepository reads apartments owned by the administration subsystem.
type ApartmentRepository struct {
	db    *sql.DB
	table string
}

// NewApartmentRepository constructs a repository.
func NewApartmentRepository(db *sql.DB) *ApartmentRepository {
	return &ApartmentRepository{db: db, table: defaultApartmentTable}
}

// FindByID loads one apartment.
func (r *ApartmentRepository) FindByID(ctx context.Context, id string) (*metering.Apartment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("apartment repo: nil db")
	}
	query := fmt.Sprintf(`SELECT id, address, meter_count FROM %s WHERE id = $1`, r.table)
	var apartment metering.Apartment
	err := txn.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&apartment.ID, &apartment.Address, &apartment.MeterCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, metering.ErrApartmentNotFound
		}
		return nil, err
	}
	return &apartment, nil
}

// ListIDs returns every apartment id in a stable order.
func (r *ApartmentRepository) ListIDs(ctx context.Context) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("apartment repo: nil db")
	}
	rows, err := txn.Conn(ctx, r.db).QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
