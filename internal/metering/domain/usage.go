package metering

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Baseline maps each slot to its last known indication before a billing month.
// Slots without history are absent and count as zero.
type Baseline map[Slot]decimal.Decimal

// SlotUsage is the consumption of a single slot in a month.
type SlotUsage struct {
	Slot     Slot
	Previous decimal.Decimal
	Current  decimal.Decimal
	// Delta is never negative; Clamped is set when Current < Previous.
	Delta   decimal.Decimal
	Clamped bool
}

// Usage is the aggregated billable consumption.
type Usage struct {
	Cold  decimal.Decimal
	Hot   decimal.Decimal
	Slots []SlotUsage
}

// Total returns cold plus hot volume.
func (u Usage) Total() decimal.Decimal {
	return u.Cold.Add(u.Hot)
}

// ClampedSlots counts slots whose delta was clamped to zero.
func (u Usage) ClampedSlots() int {
	n := 0
	for _, s := range u.Slots {
		if s.Clamped {
			n++
		}
	}
	return n
}

// ComputeUsage diffs the current per-slot maxima against baseline. Negative
// deltas are billed as zero, never refunded.
func ComputeUsage(current map[Slot]decimal.Decimal, baseline Baseline) Usage {
	usage := Usage{Cold: decimal.Zero, Hot: decimal.Zero}
	slots := make([]Slot, 0, len(current))
	for slot := range current {
		slots = append(slots, slot)
	}
	sortSlots(slots)

	for _, slot := range slots {
		cur := current[slot]
		prev, ok := baseline[slot]
		if !ok {
			prev = decimal.Zero
		}
		delta := cur.Sub(prev)
		clamped := false
		if delta.IsNegative() {
			delta = decimal.Zero
			clamped = true
		}
		usage.Slots = append(usage.Slots, SlotUsage{
			Slot:     slot,
			Previous: prev,
			Current:  cur,
			Delta:    delta,
			Clamped:  clamped,
		})
		switch slot.Type {
		case Cold:
			usage.Cold = usage.Cold.Add(delta)
		case Hot:
			usage.Hot = usage.Hot.Add(delta)
		}
	}
	return usage
}

// WarningCode identifies a non-fatal comparison warning.
type WarningCode string

const (
	WarningLowerThanPrevious   WarningCode = "lower_than_previous"
	WarningSignificantIncrease WarningCode = "significant_increase"
)

// Warning is shown to the submitter; it never blocks a submission.
type Warning struct {
	Slot     Slot            `json:"slot"`
	Code     WarningCode     `json:"code"`
	Previous decimal.Decimal `json:"previous"`
	Current  decimal.Decimal `json:"current"`
}

// CompareReadings flags clamped slots and deltas above threshold.
// A zero threshold disables the increase check.
func CompareReadings(usage Usage, threshold decimal.Decimal) []Warning {
	var warnings []Warning
	for _, s := range usage.Slots {
		switch {
		case s.Clamped:
			warnings = append(warnings, Warning{Slot: s.Slot, Code: WarningLowerThanPrevious, Previous: s.Previous, Current: s.Current})
		case threshold.IsPositive() && s.Delta.GreaterThan(threshold):
			warnings = append(warnings, Warning{Slot: s.Slot, Code: WarningSignificantIncrease, Previous: s.Previous, Current: s.Current})
		}
	}
	return warnings
}

var locationRank = map[Location]int{
	LocationKitchen:  0,
	LocationBathroom: 1,
	LocationToilet:   2,
}

func slotLess(a, b Slot) bool {
	if a.Location != b.Location {
		return locationRank[a.Location] < locationRank[b.Location]
	}
	return a.Type < b.Type
}

func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool { return slotLess(slots[i], slots[j]) })
}

func sortSlotValues(values []SlotValue) {
	sort.Slice(values, func(i, j int) bool { return slotLess(values[i].Slot, values[j].Slot) })
}
