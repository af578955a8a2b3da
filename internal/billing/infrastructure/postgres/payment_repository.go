package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
	"water-billing/internal/txn"
)

const (
	defaultPaymentTable = "payments"
	uniqueViolation     = "23505"
)

// PaymentRepository is a Postgres implementation for payments.
type PaymentRepository struct {
	db    *sql.DB
	table string
}

// PaymentOption configures the repository.
type PaymentOption func(*PaymentRepository)

// WithPaymentTable overrides the default table.
func WithPaymentTable(table string) PaymentOption {
	return func(repo *PaymentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(db *sql.DB, opts ...PaymentOption) *PaymentRepository {
	repo := &PaymentRepository{db: db, table: defaultPaymentTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

const paymentColumns = `id, apartment_id, user_id, billing_month, amount, cold_usage, hot_usage, pay_date, paid_date, status, tariff_id, created_at`

// InsertIfAbsent inserts unless (apartment_id, billing_month) already exists.
func (r *PaymentRepository) InsertIfAbsent(ctx context.Context, payment *billing.Payment) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("payment repo: nil db")
	}
	if payment == nil {
		return false, billing.ErrNilPayment
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	apartment_id,
	user_id,
	billing_month,
	amount,
	cold_usage,
	hot_usage,
	pay_date,
	paid_date,
	status,
	tariff_id,
	created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)
ON CONFLICT (apartment_id, billing_month) DO NOTHING`, r.table)

	res, err := txn.Conn(ctx, r.db).ExecContext(ctx, query,
		payment.ID,
		payment.ApartmentID,
		payment.UserID,
		monthDate(payment.BillingMonth),
		payment.Amount,
		payment.ColdUsage,
		payment.HotUsage,
		payment.PayDate,
		nullTime(payment.PaidDate),
		string(payment.Status),
		payment.TariffID,
		payment.CreatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FindByApartmentMonth returns nil when absent.
func (r *PaymentRepository) FindByApartmentMonth(ctx context.Context, apartmentID string, month calendar.Month) (*billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE apartment_id = $1 AND billing_month = $2`, paymentColumns, r.table)
	payment, err := scanPayment(txn.Conn(ctx, r.db).QueryRowContext(ctx, query, apartmentID, monthDate(month)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return payment, err
}

// FindByID loads a payment.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, paymentColumns, r.table)
	payment, err := scanPayment(txn.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrPaymentNotFound
	}
	return payment, err
}

// ListByApartment returns payments newest month first.
func (r *PaymentRepository) ListByApartment(ctx context.Context, apartmentID string) ([]billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE apartment_id = $1 ORDER BY billing_month DESC`, paymentColumns, r.table)
	rows, err := txn.Conn(ctx, r.db).QueryContext(ctx, query, apartmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []billing.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *payment)
	}
	return result, rows.Err()
}

// UpdateStatus writes status and paid date.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, payment *billing.Payment) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if payment == nil {
		return billing.ErrNilPayment
	}
	query := fmt.Sprintf(`UPDATE %s SET status = $2, paid_date = $3 WHERE id = $1`, r.table)
	res, err := txn.Conn(ctx, r.db).ExecContext(ctx, query, payment.ID, string(payment.Status), nullTime(payment.PaidDate))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}

func scanPayment(row rowScanner) (*billing.Payment, error) {
	var payment billing.Payment
	var month time.Time
	var paidDate sql.NullTime
	var status string
	if err := row.Scan(
		&payment.ID,
		&payment.ApartmentID,
		&payment.UserID,
		&month,
		&payment.Amount,
		&payment.ColdUsage,
		&payment.HotUsage,
		&payment.PayDate,
		&paidDate,
		&status,
		&payment.TariffID,
		&payment.CreatedAt,
	); err != nil {
		return nil, err
	}
	payment.BillingMonth = calendar.MonthOf(month.UTC())
	payment.Status = billing.Status(status)
	payment.CreatedAt = payment.CreatedAt.UTC()
	if paidDate.Valid {
		paid := paidDate.Time.UTC()
		payment.PaidDate = &paid
	}
	return &payment, nil
}

func monthDate(month calendar.Month) time.Time {
	return month.Start(time.UTC)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
