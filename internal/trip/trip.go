package trip

import (
	"sort"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/geo"
)

// Trip is the mutable state of one drive. Only the tracking runtime mutates an
// active trip; everything handed outward is a copy.
type Trip struct {
	ID          string      `json:"id"`
	Trigger     Trigger     `json:"trigger"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     time.Time   `json:"ended_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
	TrackingID  string      `json:"tracking_id,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	Period      Period      `json:"insurance_period"`
	VehicleType VehicleType `json:"vehicle_type"`
	DistanceM   float64     `json:"distance_m"`
	MaxSpeed    float64     `json:"max_speed_mps"`
	Waypoints   []Point     `json:"waypoints"`
	Events      []Event     `json:"events"`
	Routes      []RouteSpan `json:"routes"`
}

func New(id string, trigger Trigger, at time.Time, trackingID, sessionID string, period Period) *Trip {
	return &Trip{
		ID:         id,
		Trigger:    trigger,
		StartedAt:  at,
		UpdatedAt:  at,
		TrackingID: trackingID,
		SessionID:  sessionID,
		Period:     period,
	}
}

func (t *Trip) Active() bool {
	return t.EndedAt.IsZero()
}

// AddPoint keeps waypoints ordered by timestamp. Out-of-order points force a
// full recomputation of distance and max speed.
func (t *Trip) AddPoint(p Point) {
	n := len(t.Waypoints)
	if n == 0 || !p.Timestamp.Before(t.Waypoints[n-1].Timestamp) {
		t.Waypoints = append(t.Waypoints, p)
		if n > 0 {
			t.accumulate(t.Waypoints[n-1], p)
		}
	} else {
		i := sort.Search(n, func(i int) bool { return t.Waypoints[i].Timestamp.After(p.Timestamp) })
		t.Waypoints = append(t.Waypoints, Point{})
		copy(t.Waypoints[i+1:], t.Waypoints[i:])
		t.Waypoints[i] = p
		t.recompute()
	}
	t.touch(p.Timestamp)
}

func (t *Trip) AddEvent(e Event) {
	t.Events = append(t.Events, e)
	t.touch(e.Stop.Timestamp)
}

// ConnectRoute opens a span for bluetoothID, closing any span still open.
func (t *Trip) ConnectRoute(bluetoothID string, at time.Time) {
	t.closeRoute(at)
	t.Routes = append(t.Routes, RouteSpan{BluetoothID: bluetoothID, ConnectedAt: at})
	t.touch(at)
}

func (t *Trip) DisconnectRoute(at time.Time) {
	t.closeRoute(at)
	t.touch(at)
}

// End freezes the trip at the given time.
func (t *Trip) End(at time.Time) {
	if at.Before(t.StartedAt) {
		at = t.StartedAt
	}
	t.closeRoute(at)
	t.EndedAt = at
	t.touch(at)
}

func (t *Trip) CurrentSpeed() float64 {
	n := len(t.Waypoints)
	if n < 2 {
		return 0
	}
	return segmentSpeed(t.Waypoints[n-2], t.Waypoints[n-1])
}

func (t *Trip) AverageSpeed() float64 {
	end := t.EndedAt
	if end.IsZero() {
		end = t.UpdatedAt
	}
	secs := end.Sub(t.StartedAt).Seconds()
	if secs <= 0 {
		return 0
	}
	return t.DistanceM / secs
}

func (t *Trip) StartInfo() StartInfo {
	return StartInfo{
		DriveID:    t.ID,
		StartedAt:  t.StartedAt,
		Period:     t.Period,
		Distance:   t.DistanceM,
		Waypoints:  append([]Point(nil), t.Waypoints...),
		TrackingID: t.TrackingID,
		SessionID:  t.SessionID,
	}
}

func (t *Trip) ResumeInfo(gapStart, gapEnd time.Time) ResumeInfo {
	return ResumeInfo{StartInfo: t.StartInfo(), GapStart: gapStart, GapEnd: gapEnd}
}

func (t *Trip) ActiveInfo() ActiveInfo {
	return ActiveInfo{
		DriveID:      t.ID,
		StartedAt:    t.StartedAt,
		Period:       t.Period,
		CurrentSpeed: t.CurrentSpeed(),
		Distance:     t.DistanceM,
		TrackingID:   t.TrackingID,
		SessionID:    t.SessionID,
	}
}

// Estimate is the best-effort report emitted when the trip ends.
func (t *Trip) Estimate() Info {
	return Info{
		DriveID:      t.ID,
		Quality:      QualityEstimated,
		DriveType:    DriveTypeDrive,
		UserMode:     UserModeDriver,
		Period:       t.Period,
		StartedAt:    t.StartedAt,
		EndedAt:      t.EndedAt,
		AverageSpeed: t.AverageSpeed(),
		MaxSpeed:     t.MaxSpeed,
		Distance:     t.DistanceM,
		Waypoints:    append([]Point(nil), t.Waypoints...),
		TrackingID:   t.TrackingID,
		SessionID:    t.SessionID,
		Events:       append([]Event(nil), t.Events...),
		Score:        -1,
		EventRatings: UnratedEvents(),
		Warnings:     t.warnings(),
		Tags:         []Tag{},
		VehicleType:  t.VehicleType,
	}
}

// MaxExpectedDuration is the trip length past which a report carries
// WarningUnexpectedTripDuration. Trips this long usually mean a manual trip
// was never stopped.
const MaxExpectedDuration = 12 * time.Hour

func (t *Trip) warnings() []TripWarning {
	end := t.EndedAt
	if end.IsZero() {
		end = t.UpdatedAt
	}
	if end.Sub(t.StartedAt) > MaxExpectedDuration {
		return []TripWarning{{Type: WarningUnexpectedTripDuration}}
	}
	return []TripWarning{}
}

func (t *Trip) accumulate(from, to Point) {
	t.DistanceM += geo.HaversineM(from.Lat, from.Lng, to.Lat, to.Lng)
	if s := segmentSpeed(from, to); s > t.MaxSpeed {
		t.MaxSpeed = s
	}
}

func (t *Trip) recompute() {
	t.DistanceM = 0
	t.MaxSpeed = 0
	for i := 1; i < len(t.Waypoints); i++ {
		t.accumulate(t.Waypoints[i-1], t.Waypoints[i])
	}
}

func (t *Trip) closeRoute(at time.Time) {
	n := len(t.Routes)
	if n > 0 && t.Routes[n-1].DisconnectedAt.IsZero() {
		t.Routes[n-1].DisconnectedAt = at
	}
}

func (t *Trip) touch(at time.Time) {
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
}

func segmentSpeed(from, to Point) float64 {
	secs := to.Timestamp.Sub(from.Timestamp).Seconds()
	if secs <= 0 {
		return 0
	}
	return geo.HaversineM(from.Lat, from.Lng, to.Lat, to.Lng) / secs
}
