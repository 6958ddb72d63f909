// Package mock builds synthetic auto drives that the tracking runtime can
// simulate through its regular detection pipeline.
package mock

import (
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

// MaxRunTime bounds how long a simulation may take in real time.
const MaxRunTime = 5 * time.Hour

// Accident is a collision injected at At. Without Potential only the final
// signal is raised.
type Accident struct {
	At        time.Time           `json:"at"`
	Location  trip.Point          `json:"location"`
	Potential bool                `json:"potential"`
	Config    accident.MockConfig `json:"config"`
}

// Drive is an immutable simulated auto drive. Start and End are drive time;
// the delays are real time added around the compressed drive.
type Drive struct {
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	DriveType     trip.DriveType   `json:"drive_type"`
	UserMode      trip.UserMode    `json:"user_mode"`
	VehicleType   trip.VehicleType `json:"vehicle_type"`
	AverageSpeed  float64          `json:"average_speed_mps"`
	MaxSpeed      float64          `json:"max_speed_mps"`
	Distance      float64          `json:"distance_m"`
	Score         int              `json:"score"`
	VehicleIDTag  string           `json:"vehicle_id_tag,omitempty"`
	Waypoints     []trip.Point     `json:"waypoints"`
	Events        []trip.Event     `json:"events"`
	Accidents     []Accident       `json:"accidents"`
	StartDelay    time.Duration    `json:"start_delay"`
	EndDelay      time.Duration    `json:"end_delay"`
	AnalysisDelay time.Duration    `json:"analysis_delay"`
}

func (d Drive) Duration() time.Duration {
	return d.End.Sub(d.Start)
}

// Analysis is the engine result delivered for the simulated trip driveID.
func (d Drive) Analysis(driveID string) trip.Analysis {
	events := append([]trip.Event{}, d.Events...)
	for _, a := range d.Accidents {
		if a.Config.FinalNumber == 0 {
			continue
		}
		events = append(events, trip.Event{
			Type:     trip.EventAccident,
			Severity: trip.SeverityHigh,
			Start:    a.Location,
			Stop:     a.Location,
		})
	}
	a := trip.Analysis{
		DriveID:      driveID,
		DriveType:    d.DriveType,
		UserMode:     d.UserMode,
		Score:        d.Score,
		Distance:     d.Distance,
		AverageSpeed: d.AverageSpeed,
		MaxSpeed:     d.MaxSpeed,
		Waypoints:    append([]trip.Point{}, d.Waypoints...),
		Events:       events,
	}
	if d.DriveType == trip.DriveTypeDrive {
		r := rateEvents(events)
		a.EventRatings = &r
	}
	if d.VehicleIDTag != "" {
		a.Tags = []trip.Tag{{Key: vehicle.TagKey, Value: d.VehicleIDTag}}
	}
	return a
}

// rateEvents drops one star per event of a kind, down to one star.
func rateEvents(events []trip.Event) trip.EventRatings {
	counts := map[trip.EventType]int{}
	for _, e := range events {
		counts[e.Type]++
	}
	star := func(types ...trip.EventType) trip.StarRating {
		n := 0
		for _, et := range types {
			n += counts[et]
		}
		return trip.StarRatingFromRaw(max(int(trip.StarOne), int(trip.StarFive)-n))
	}
	return trip.EventRatings{
		PhoneHandling:          star(trip.EventPhoneHandling, trip.EventPhoneScreenInteraction),
		HardBrake:              star(trip.EventHardBrake),
		HardTurn:               star(trip.EventHardTurn),
		Speeding:               star(trip.EventOverSpeeding),
		AggressiveAcceleration: star(trip.EventAggressiveAcceleration),
	}
}

// Builder assembles a Drive. Setters chain; Build validates.
type Builder struct {
	d Drive
}

// NewAutoDriveBuilder starts an empty drive. The drive type defaults to
// invalid and the score to -1 until set.
func NewAutoDriveBuilder(start, end time.Time) *Builder {
	return &Builder{d: Drive{
		Start:       start,
		End:         end,
		DriveType:   trip.DriveTypeInvalid,
		UserMode:    trip.UserModeDriver,
		VehicleType: trip.VehicleCar,
		Score:       -1,
	}}
}

func (b *Builder) AverageSpeed(mps float64) *Builder {
	b.d.AverageSpeed = mps
	return b
}

func (b *Builder) MaxSpeed(mps float64) *Builder {
	b.d.MaxSpeed = mps
	return b
}

func (b *Builder) Distance(meters float64) *Builder {
	b.d.Distance = meters
	return b
}

func (b *Builder) DriveType(t trip.DriveType) *Builder {
	b.d.DriveType = t
	return b
}

func (b *Builder) UserMode(m trip.UserMode) *Builder {
	b.d.UserMode = m
	return b
}

func (b *Builder) VehicleType(t trip.VehicleType) *Builder {
	b.d.VehicleType = t
	return b
}

func (b *Builder) Score(score int) *Builder {
	b.d.Score = score
	return b
}

func (b *Builder) VehicleIDTag(id string) *Builder {
	b.d.VehicleIDTag = id
	return b
}

func (b *Builder) Waypoints(points []trip.Point) *Builder {
	b.d.Waypoints = append([]trip.Point(nil), points...)
	return b
}

func (b *Builder) AddEvent(e trip.Event) *Builder {
	b.d.Events = append(b.d.Events, e)
	return b
}

func (b *Builder) AddAccident(a Accident) *Builder {
	b.d.Accidents = append(b.d.Accidents, a)
	return b
}

// ClearEvents drops driving events and accidents.
func (b *Builder) ClearEvents() *Builder {
	b.d.Events = nil
	b.d.Accidents = nil
	return b
}

func (b *Builder) StartDelay(d time.Duration) *Builder {
	b.d.StartDelay = d
	return b
}

func (b *Builder) EndDelay(d time.Duration) *Builder {
	b.d.EndDelay = d
	return b
}

func (b *Builder) AnalysisDelay(d time.Duration) *Builder {
	b.d.AnalysisDelay = d
	return b
}

func (b *Builder) Build() (Drive, error) {
	d := b.d
	if !d.Start.Before(d.End) {
		return Drive{}, sdkerr.Newf(sdkerr.InvalidParams, "drive start must be before its end")
	}
	if d.StartDelay < 0 || d.EndDelay < 0 || d.AnalysisDelay < 0 {
		return Drive{}, sdkerr.Newf(sdkerr.InvalidParams, "delays must not be negative")
	}
	if !ident.ValidID(d.VehicleIDTag, false) {
		return Drive{}, sdkerr.New(sdkerr.InvalidVehicleID)
	}
	for _, p := range d.Waypoints {
		if !within(d, p.Timestamp) {
			return Drive{}, sdkerr.Newf(sdkerr.InvalidParams, "waypoint at %s outside the drive", p.Timestamp.Format(time.RFC3339))
		}
	}
	for _, e := range d.Events {
		if !within(d, e.Start.Timestamp) || !within(d, e.Stop.Timestamp) || e.Stop.Timestamp.Before(e.Start.Timestamp) {
			return Drive{}, sdkerr.Newf(sdkerr.InvalidParams, "%s event outside the drive", e.Type)
		}
	}
	for _, a := range d.Accidents {
		if !within(d, a.At) {
			return Drive{}, sdkerr.Newf(sdkerr.InvalidParams, "accident outside the drive")
		}
		if err := a.Config.Validate(); err != nil {
			return Drive{}, err
		}
	}

	d.Waypoints = append([]trip.Point(nil), d.Waypoints...)
	d.Events = append([]trip.Event(nil), d.Events...)
	d.Accidents = append([]Accident(nil), d.Accidents...)
	return d, nil
}

func within(d Drive, at time.Time) bool {
	return !at.Before(d.Start) && !at.After(d.End)
}
