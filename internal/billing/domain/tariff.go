package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rates are per-unit-volume prices.
type Rates struct {
	ColdWater  decimal.Decimal `json:"cold_water_rate"`
	HotWater   decimal.Decimal `json:"hot_water_rate"`
	DirtyWater decimal.Decimal `json:"dirty_water_rate"`
}

// Validate rejects negative rates.
func (r Rates) Validate() error {
	if r.ColdWater.IsNegative() || r.HotWater.IsNegative() || r.DirtyWater.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

// Tariff is a versioned rate record. Tariffs are never deleted; a superseded
// tariff keeps its EffectiveTo and IsActive=false for recomputation.
type Tariff struct {
	ID            int64      `json:"id"`
	Rates         Rates      `json:"rates"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Covers reports whether t falls inside [EffectiveFrom, EffectiveTo).
func (t Tariff) Covers(at time.Time) bool {
	if at.Before(t.EffectiveFrom) {
		return false
	}
	return t.EffectiveTo == nil || at.Before(*t.EffectiveTo)
}
