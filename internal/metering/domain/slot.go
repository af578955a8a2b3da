package metering

import "fmt"

// Location is the room a meter is installed in.
type Location string

const (
	LocationKitchen  Location = "Kitchen"
	LocationBathroom Location = "Bathroom"
	LocationToilet   Location = "Toilet"
)

// ParseLocation returns the known location for s.
func ParseLocation(s string) (Location, bool) {
	switch Location(s) {
	case LocationKitchen, LocationBathroom, LocationToilet:
		return Location(s), true
	default:
		return "", false
	}
}

// WaterType distinguishes cold and hot meters. The numeric values are stored.
type WaterType int

const (
	Cold WaterType = 0
	Hot  WaterType = 1
)

// Valid reports whether t is a known water type.
func (t WaterType) Valid() bool {
	return t == Cold || t == Hot
}

func (t WaterType) String() string {
	switch t {
	case Cold:
		return "cold"
	case Hot:
		return "hot"
	default:
		return fmt.Sprintf("water_type(%d)", int(t))
	}
}

// Slot is a (location, water type) pair that must receive one reading per submission.
type Slot struct {
	Location Location  `json:"location"`
	Type     WaterType `json:"type"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%s/%s", s.Location, s.Type)
}

const (
	MinMeterCount = 2
	MaxMeterCount = 5
)

// expectedSlots is indexed by meter count; each row extends the previous one.
var expectedSlots = map[int][]Slot{
	2: {
		{LocationKitchen, Cold},
		{LocationKitchen, Hot},
	},
	3: {
		{LocationKitchen, Cold},
		{LocationKitchen, Hot},
		{LocationBathroom, Cold},
	},
	4: {
		{LocationKitchen, Cold},
		{LocationKitchen, Hot},
		{LocationBathroom, Cold},
		{LocationBathroom, Hot},
	},
	5: {
		{LocationKitchen, Cold},
		{LocationKitchen, Hot},
		{LocationBathroom, Cold},
		{LocationBathroom, Hot},
		{LocationToilet, Cold},
	},
}

// ExpectedSlots returns the ordered slots an apartment with meterCount meters must report.
func ExpectedSlots(meterCount int) ([]Slot, error) {
	slots, ok := expectedSlots[meterCount]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMeterCount, meterCount)
	}
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out, nil
}
