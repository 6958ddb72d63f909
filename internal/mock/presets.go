package mock

import (
	"math"
	"strings"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

type Preset int

const (
	Urban10Min Preset = iota
	Highway60Min
	Urban30MinWithCollision
	Urban30MinWithMultipleCollisionCallback
	NonDriving60Min
	Invalid
	Urban10MinMotorcycle
)

var presetNames = []string{
	"urban_10_min",
	"highway_60_min",
	"urban_30_min_with_collision",
	"urban_30_min_with_multiple_collision_callback",
	"non_driving_60_min",
	"invalid",
	"urban_10_min_motorcycle",
}

func (p Preset) String() string {
	if p < 0 || int(p) >= len(presetNames) {
		return "unknown"
	}
	return presetNames[p]
}

func ParsePreset(s string) (Preset, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range presetNames {
		if n == s {
			return Preset(i), true
		}
	}
	return 0, false
}

type presetSpec struct {
	duration    time.Duration
	distance    float64
	driveType   trip.DriveType
	vehicleType trip.VehicleType
	score       int
	events      []trip.EventType
	collision   bool
	potential   bool
}

var presets = map[Preset]presetSpec{
	Urban10Min: {
		duration: 10 * time.Minute, distance: 4445, driveType: trip.DriveTypeDrive, score: 82,
		events: []trip.EventType{trip.EventHardBrake, trip.EventAggressiveAcceleration},
	},
	Highway60Min: {
		duration: 58 * time.Minute, distance: 59112, driveType: trip.DriveTypeDrive, score: 76,
		events: []trip.EventType{trip.EventHardBrake, trip.EventOverSpeeding, trip.EventPhoneHandling},
	},
	Urban30MinWithCollision: {
		duration: 31 * time.Minute, distance: 50130, driveType: trip.DriveTypeDrive, score: 41,
		events:    []trip.EventType{trip.EventHardBrake, trip.EventHardTurn},
		collision: true,
	},
	Urban30MinWithMultipleCollisionCallback: {
		duration: 31 * time.Minute, distance: 50130, driveType: trip.DriveTypeDrive, score: 41,
		events:    []trip.EventType{trip.EventHardBrake, trip.EventHardTurn},
		collision: true,
		potential: true,
	},
	NonDriving60Min: {
		duration: 66 * time.Minute, distance: 74990, driveType: trip.DriveTypeNonDriving, score: -1,
	},
	Invalid: {
		duration: 14700 * time.Millisecond, distance: 1624, driveType: trip.DriveTypeInvalid, score: -1,
	},
	Urban10MinMotorcycle: {
		duration: 10 * time.Minute, distance: 4445, driveType: trip.DriveTypeDrive, score: 80,
		vehicleType: trip.VehicleMotorcycle,
		events:      []trip.EventType{trip.EventHardBrake, trip.EventAggressiveAcceleration},
	},
}

const (
	sampleInterval = 30 * time.Second
	originLat      = 37.7749
	originLng      = -122.4194
	earthRadiusM   = 6371000.0
)

// PresetBuilder returns a builder pre-filled with a predefined drive starting
// at start. The builder may be modified before Build.
func PresetBuilder(p Preset, start time.Time) (*Builder, error) {
	spec, ok := presets[p]
	if !ok {
		return nil, sdkerr.Newf(sdkerr.InvalidParams, "unknown preset %d", int(p))
	}
	end := start.Add(spec.duration)
	points := route(start, spec.duration, spec.distance)
	avg := spec.distance / spec.duration.Seconds()

	b := NewAutoDriveBuilder(start, end).
		DriveType(spec.driveType).
		VehicleType(spec.vehicleType).
		Distance(spec.distance).
		AverageSpeed(avg).
		MaxSpeed(avg * 1.6).
		Score(spec.score).
		Waypoints(points)

	for i, t := range spec.events {
		idx := (i + 1) * (len(points) - 1) / (len(spec.events) + 2)
		b.AddEvent(eventAt(t, points, idx))
	}
	if spec.collision {
		loc := points[len(points)/2]
		b.AddAccident(Accident{
			At:        loc.Timestamp,
			Location:  loc,
			Potential: spec.potential,
			Config:    accident.DefaultMockConfig(),
		})
	}
	return b, nil
}

// route lays out points due north of a fixed origin, evenly spaced in time, so
// that their summed haversine distance matches distance.
func route(start time.Time, duration time.Duration, distance float64) []trip.Point {
	n := int(duration/sampleInterval) + 1
	if n < 2 {
		n = 2
	}
	points := make([]trip.Point, n)
	for i := range points {
		frac := float64(i) / float64(n-1)
		points[i] = trip.Point{
			Timestamp: start.Add(time.Duration(float64(duration) * frac)),
			Lat:       originLat + distance*frac/earthRadiusM*180/math.Pi,
			Lng:       originLng,
		}
	}
	return points
}

func eventAt(t trip.EventType, points []trip.Point, idx int) trip.Event {
	e := trip.Event{Type: t, Severity: trip.SeverityLow, Start: points[idx], Stop: points[idx]}
	switch t {
	case trip.EventHardBrake, trip.EventAggressiveAcceleration:
		e.Severity = trip.SeverityHigh
	case trip.EventOverSpeeding, trip.EventPhoneHandling, trip.EventHardTurn:
		if idx+1 < len(points) {
			e.Stop = points[idx+1]
		}
	}
	if t == trip.EventOverSpeeding {
		e.SpeedLimitMPS = 29
		e.UserSpeedMPS = 35
	}
	return e
}
