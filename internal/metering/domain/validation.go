package metering

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxIndicationPlaces is the scale of the stored indication column. Finer
// values are rejected rather than rounded on insert.
const MaxIndicationPlaces = 4

// Entry is a submitted reading before validation. Fields hold the caller's
// text so malformed values can be reported back as submitted.
type Entry struct {
	Location   string `json:"location"`
	Type       string `json:"type"`
	Indication string `json:"indication"`
}

// SlotValue is a validated indication for one slot.
type SlotValue struct {
	Slot       Slot
	Indication decimal.Decimal
}

// ValidationError describes a rejected batch. Code is one of ErrInvalidReading,
// ErrUnexpectedSlot or ErrIncompleteSubmission.
type ValidationError struct {
	Code      error
	Offending []Entry
	Missing   []Slot
	Expected  []Slot
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("%v: missing %s", e.Code, joinSlots(e.Missing))
	case len(e.Offending) > 0:
		return fmt.Sprintf("%v: %d offending entries", e.Code, len(e.Offending))
	default:
		return e.Code.Error()
	}
}

func (e *ValidationError) Unwrap() error { return e.Code }

// ValidateBatch checks a batch against the expected slots. It accepts the whole
// batch or none of it: malformed entries first, then slots the apartment does
// not have (including repeats), then missing slots.
func ValidateBatch(expected []Slot, batch []Entry) ([]SlotValue, error) {
	values := make([]SlotValue, 0, len(batch))
	var malformed []Entry
	for _, entry := range batch {
		value, ok := parseEntry(entry)
		if !ok {
			malformed = append(malformed, entry)
			continue
		}
		values = append(values, value)
	}
	if len(malformed) > 0 {
		return nil, &ValidationError{Code: ErrInvalidReading, Offending: malformed, Expected: cloneSlots(expected)}
	}

	want := make(map[Slot]bool, len(expected))
	for _, slot := range expected {
		want[slot] = true
	}
	seen := make(map[Slot]bool, len(values))
	var unexpected []Entry
	for i, value := range values {
		if !want[value.Slot] || seen[value.Slot] {
			unexpected = append(unexpected, batch[i])
			continue
		}
		seen[value.Slot] = true
	}
	if len(unexpected) > 0 {
		return nil, &ValidationError{Code: ErrUnexpectedSlot, Offending: unexpected, Expected: cloneSlots(expected)}
	}

	var missing []Slot
	for _, slot := range expected {
		if !seen[slot] {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Code: ErrIncompleteSubmission, Missing: missing, Expected: cloneSlots(expected)}
	}

	sortSlotValues(values)
	return values, nil
}

func parseEntry(entry Entry) (SlotValue, bool) {
	location, ok := ParseLocation(entry.Location)
	if !ok {
		return SlotValue{}, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(entry.Type))
	if err != nil {
		return SlotValue{}, false
	}
	waterType := WaterType(code)
	if !waterType.Valid() {
		return SlotValue{}, false
	}
	raw := strings.TrimSpace(entry.Indication)
	if raw == "" {
		return SlotValue{}, false
	}
	indication, err := decimal.NewFromString(raw)
	if err != nil || indication.IsNegative() {
		return SlotValue{}, false
	}
	if !indication.Equal(indication.Truncate(MaxIndicationPlaces)) {
		return SlotValue{}, false
	}
	return SlotValue{Slot: Slot{Location: location, Type: waterType}, Indication: indication}, true
}

func cloneSlots(slots []Slot) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out
}

func joinSlots(slots []Slot) string {
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, slot.String())
	}
	return strings.Join(parts, ", ")
}
