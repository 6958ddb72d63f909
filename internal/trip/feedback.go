package trip

import "time"

// DriveCategory is the host's own classification of a detected trip. Values
// are fixed; gaps are intentional.
type DriveCategory int

const (
	CategoryCar          DriveCategory = 0
	CategoryCarDriver    DriveCategory = 1
	CategoryCarPassenger DriveCategory = 2
	CategoryTrain        DriveCategory = 3
	CategoryBus          DriveCategory = 4
	CategoryBicycle      DriveCategory = 5
	CategoryMotorcycle   DriveCategory = 6
	CategoryFoot         DriveCategory = 7
	CategoryTransit      DriveCategory = 8
	CategoryFlight       DriveCategory = 9
	CategoryInvalid      DriveCategory = 97
	CategoryNotCar       DriveCategory = 98
	CategoryOther        DriveCategory = 99
)

var categories = []DriveCategory{
	CategoryCar, CategoryCarDriver, CategoryCarPassenger, CategoryTrain, CategoryBus,
	CategoryBicycle, CategoryMotorcycle, CategoryFoot, CategoryTransit, CategoryFlight,
	CategoryInvalid, CategoryNotCar, CategoryOther,
}

var categoryNames = []string{
	"car", "car_driver", "car_passenger", "train", "bus",
	"bicycle", "motorcycle", "foot", "transit", "flight",
	"invalid", "not_car", "other",
}

func (c DriveCategory) String() string {
	for i, known := range categories {
		if known == c {
			return categoryNames[i]
		}
	}
	return "car"
}

// ParseDriveCategory reports ok=false for unknown names.
func ParseDriveCategory(s string) (DriveCategory, bool) {
	i := indexOr(categoryNames, s, -1)
	if i < 0 {
		return CategoryCar, false
	}
	return categories[i], true
}

// EventOccurrence confirms or denies one detected event, identified by its
// type and start time.
type EventOccurrence struct {
	Type      EventType `json:"type"`
	StartedAt time.Time `json:"started_at"`
	Occurred  bool      `json:"occurred"`
}

// Feedback is what the host reported about an ended trip.
type Feedback struct {
	Category *DriveCategory    `json:"category,omitempty"`
	Events   []EventOccurrence `json:"events,omitempty"`
}

// HasEvent reports whether the report contains an event of type et that
// started at ts.
func (i Info) HasEvent(et EventType, ts time.Time) bool {
	for _, e := range i.Events {
		if e.Type == et && e.Start.Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

// SetCategory records the host's classification, replacing an earlier one.
func (f *Feedback) SetCategory(c DriveCategory) {
	f.Category = &c
}

// SetOccurrence records whether an event happened. A later answer for the same
// event replaces the earlier one.
func (f *Feedback) SetOccurrence(o EventOccurrence) {
	for n := range f.Events {
		if f.Events[n].Type == o.Type && f.Events[n].StartedAt.Equal(o.StartedAt) {
			f.Events[n].Occurred = o.Occurred
			return
		}
	}
	f.Events = append(f.Events, o)
}
