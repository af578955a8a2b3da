package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"water-billing/internal/metering/domain"
)

// ApartmentRepository is an in-memory apartment store.
type ApartmentRepository struct {
	mu   sync.RWMutex
	data map[string]metering.Apartment
}

// NewApartmentRepository constructs a repository seeded with apartments.
func NewApartmentRepository(apartments ...metering.Apartment) *ApartmentRepository {
	repo := &ApartmentRepository{data: make(map[string]metering.Apartment)}
	for _, apartment := range apartments {
		repo.data[apartment.ID] = apartment
	}
	return repo
}

// Put adds or replaces an apartment.
func (r *ApartmentRepository) Put(apartment metering.Apartment) {
	r.mu.Lock()
	r.data[apartment.ID] = apartment
	r.mu.Unlock()
}

// FindByID loads one apartment.
func (r *ApartmentRepository) FindByID(ctx context.Context, id string) (*metering.Apartment, error) {
	_ = ctx
	r.mu.RLock()
	apartment, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, metering.ErrApartmentNotFound
	}
	return &apartment, nil
}

// ListIDs returns apartment ids sorted.
func (r *ApartmentRepository) ListIDs(ctx context.Context) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// ReadingRepository is an in-memory reading store.
type ReadingRepository struct {
	mu   sync.RWMutex
	data []metering.Reading
}

// NewReadingRepository constructs a repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{}
}

// InsertBatch appends readings.
func (r *ReadingRepository) InsertBatch(ctx context.Context, readings []metering.Reading) error {
	_ = ctx
	for _, reading := range readings {
		if reading.ApartmentID == "" {
			return metering.ErrEmptyApartmentID
		}
	}
	r.mu.Lock()
	r.data = append(r.data, readings...)
	r.mu.Unlock()
	return nil
}

// ExistsBetween reports whether the apartment has any reading in [from, to).
func (r *ReadingRepository) ExistsBetween(ctx context.Context, apartmentID string, from, to time.Time) (bool, error) {
	readings, err := r.between(apartmentID, from, to)
	return len(readings) > 0, err
}

// MaxBySlot returns MAX(indication) per slot in [from, to).
func (r *ReadingRepository) MaxBySlot(ctx context.Context, apartmentID string, from, to time.Time) (map[metering.Slot]decimal.Decimal, error) {
	readings, err := r.between(apartmentID, from, to)
	if err != nil {
		return nil, err
	}
	result := make(map[metering.Slot]decimal.Decimal)
	for _, reading := range readings {
		if current, ok := result[reading.Slot]; !ok || reading.Indication.GreaterThan(current) {
			result[reading.Slot] = reading.Indication
		}
	}
	return result, nil
}

func (r *ReadingRepository) between(apartmentID string, from, to time.Time) ([]metering.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []metering.Reading
	for _, reading := range r.data {
		if reading.ApartmentID != apartmentID {
			continue
		}
		if reading.RecordedAt.Before(from) || !reading.RecordedAt.Before(to) {
			continue
		}
		result = append(result, reading)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})
	return result, nil
}

// Count returns the number of stored readings.
func (r *ReadingRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
