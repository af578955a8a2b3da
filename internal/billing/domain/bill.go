package billing

import "github.com/shopspring/decimal"

// MoneyPlaces is the presentation precision for amounts.
const MoneyPlaces = 2

// Consumption is a month's billable volume.
type Consumption struct {
	Cold decimal.Decimal `json:"cold"`
	Hot  decimal.Decimal `json:"hot"`
}

// Total returns cold plus hot intake.
func (c Consumption) Total() decimal.Decimal {
	return c.Cold.Add(c.Hot)
}

// Validate rejects negative volumes.
func (c Consumption) Validate() error {
	if c.Cold.IsNegative() || c.Hot.IsNegative() {
		return ErrNegativeUsage
	}
	return nil
}

// Bill is the itemized cost of a month.
type Bill struct {
	ColdWaterCost  decimal.Decimal `json:"cold_water_cost"`
	HotWaterCost   decimal.Decimal `json:"hot_water_cost"`
	DirtyWaterCost decimal.Decimal `json:"dirty_water_cost"`
	Total          decimal.Decimal `json:"total"`
}

// CalculateBill prices consumption. Clean and dirty water are charged on the
// whole intake; the hot rate is a heating surcharge on hot volume only.
func CalculateBill(usage Consumption, tariff Tariff) Bill {
	intake := usage.Total()
	cold := intake.Mul(tariff.Rates.ColdWater)
	hot := usage.Hot.Mul(tariff.Rates.HotWater)
	dirty := intake.Mul(tariff.Rates.DirtyWater)
	return Bill{
		ColdWaterCost:  cold,
		HotWaterCost:   hot,
		DirtyWaterCost: dirty,
		Total:          cold.Add(hot).Add(dirty),
	}
}

// Rounded returns the bill rounded to MoneyPlaces for display.
func (b Bill) Rounded() Bill {
	return Bill{
		ColdWaterCost:  b.ColdWaterCost.Round(MoneyPlaces),
		HotWaterCost:   b.HotWaterCost.Round(MoneyPlaces),
		DirtyWaterCost: b.DirtyWaterCost.Round(MoneyPlaces),
		Total:          b.Total.Round(MoneyPlaces),
	}
}
