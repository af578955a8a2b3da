package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
)

// TariffRepository is an in-memory tariff store.
type TariffRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   []billing.Tariff
}

// NewTariffRepository constructs a repository.
func NewTariffRepository() *TariffRepository {
	return &TariffRepository{nextID: 1}
}

// Active returns the newest active tariff.
func (r *TariffRepository) Active(ctx context.Context) (*billing.Tariff, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active *billing.Tariff
	for i := range r.data {
		if r.data[i].IsActive && (active == nil || r.data[i].ID > active.ID) {
			active = &r.data[i]
		}
	}
	if active == nil {
		return nil, billing.ErrNoTariffConfigured
	}
	copied := *active
	return &copied, nil
}

// ByID returns a tariff by id.
func (r *TariffRepository) ByID(ctx context.Context, id int64) (*billing.Tariff, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tariff := range r.data {
		if tariff.ID == id {
			return &tariff, nil
		}
	}
	return nil, billing.ErrTariffNotFound
}

// At returns the newest tariff covering t.
func (r *TariffRepository) At(ctx context.Context, t time.Time) (*billing.Tariff, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *billing.Tariff
	for i := range r.data {
		if r.data[i].Covers(t) && (found == nil || r.data[i].ID > found.ID) {
			found = &r.data[i]
		}
	}
	if found == nil {
		return nil, billing.ErrTariffNotFound
	}
	copied := *found
	return &copied, nil
}

// List returns tariffs newest first.
func (r *TariffRepository) List(ctx context.Context) ([]billing.Tariff, error) {
	_ = ctx
	r.mu.RLock()
	result := append([]billing.Tariff(nil), r.data...)
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// Close ends a tariff.
func (r *TariffRepository) Close(ctx context.Context, id int64, effectiveTo time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data {
		if r.data[i].ID == id {
			to := effectiveTo
			r.data[i].EffectiveTo = &to
			r.data[i].IsActive = false
			return nil
		}
	}
	return billing.ErrTariffNotFound
}

// Insert assigns an id and stores the tariff.
func (r *TariffRepository) Insert(ctx context.Context, tariff *billing.Tariff) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	tariff.ID = r.nextID
	r.nextID++
	r.data = append(r.data, *tariff)
	return nil
}

// PaymentRepository is an in-memory payment store keyed like the unique index.
type PaymentRepository struct {
	mu      sync.RWMutex
	byID    map[string]billing.Payment
	byMonth map[string]string
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		byID:    make(map[string]billing.Payment),
		byMonth: make(map[string]string),
	}
}

func monthKey(apartmentID string, month calendar.Month) string {
	return apartmentID + "|" + month.String()
}

// InsertIfAbsent stores the payment unless its apartment and month are taken.
func (r *PaymentRepository) InsertIfAbsent(ctx context.Context, payment *billing.Payment) (bool, error) {
	_ = ctx
	if payment == nil {
		return false, billing.ErrNilPayment
	}
	key := monthKey(payment.ApartmentID, payment.BillingMonth)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byMonth[key]; ok {
		return false, nil
	}
	r.byMonth[key] = payment.ID
	r.byID[payment.ID] = *payment
	return true, nil
}

// FindByApartmentMonth returns nil when absent.
func (r *PaymentRepository) FindByApartmentMonth(ctx context.Context, apartmentID string, month calendar.Month) (*billing.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byMonth[monthKey(apartmentID, month)]
	if !ok {
		return nil, nil
	}
	payment := r.byID[id]
	return &payment, nil
}

// FindByID loads a payment.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*billing.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	payment, ok := r.byID[id]
	if !ok {
		return nil, billing.ErrPaymentNotFound
	}
	return &payment, nil
}

// ListByApartment returns payments newest month first.
func (r *PaymentRepository) ListByApartment(ctx context.Context, apartmentID string) ([]billing.Payment, error) {
	_ = ctx
	r.mu.RLock()
	var result []billing.Payment
	for _, payment := range r.byID {
		if payment.ApartmentID == apartmentID {
			result = append(result, payment)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[j].BillingMonth.Before(result[i].BillingMonth)
	})
	return result, nil
}

// UpdateStatus writes status and paid date.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, payment *billing.Payment) error {
	_ = ctx
	if payment == nil {
		return billing.ErrNilPayment
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[payment.ID]
	if !ok {
		return billing.ErrPaymentNotFound
	}
	stored.Status = payment.Status
	stored.PaidDate = payment.PaidDate
	r.byID[payment.ID] = stored
	return nil
}

// Count returns the number of stored payments.
func (r *PaymentRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
