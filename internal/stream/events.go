package stream

import (
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/accident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

type EventType string

const (
	EventDriveStart        EventType = "drive_start"
	EventDriveResume       EventType = "drive_resume"
	EventDriveEnd          EventType = "drive_end"
	EventDriveAnalyzed     EventType = "drive_analyzed"
	EventPotentialAccident EventType = "potential_accident"
	EventAccident          EventType = "accident"
	EventSettingsChanged   EventType = "settings_changed"
)

type SettingsError int

const (
	LocationPermissionNotAuthorized SettingsError = iota
	ActivityPermissionNotAuthorized
)

func (e SettingsError) String() string {
	if e == ActivityPermissionNotAuthorized {
		return "activity_permission_not_authorized"
	}
	return "location_permission_not_authorized"
}

// SettingsErrorFromRaw falls back to LocationPermissionNotAuthorized.
func SettingsErrorFromRaw(raw int) SettingsError {
	if raw == int(ActivityPermissionNotAuthorized) {
		return ActivityPermissionNotAuthorized
	}
	return LocationPermissionNotAuthorized
}

// Settings lists the device or app settings currently preventing detection.
type Settings struct {
	Errors []SettingsError `json:"errors"`
}

// Event is one delegate callback. Exactly one payload field is set, matching
// Type.
type Event struct {
	Seq      uint64           `json:"seq"`
	Type     EventType        `json:"type"`
	Start    *trip.StartInfo  `json:"start,omitempty"`
	Resume   *trip.ResumeInfo `json:"resume,omitempty"`
	Drive    *trip.Info       `json:"drive,omitempty"`
	Accident *accident.Signal `json:"accident,omitempty"`
	Settings *Settings        `json:"settings,omitempty"`
}

func DriveStart(info trip.StartInfo) Event {
	return Event{Type: EventDriveStart, Start: &info}
}

func DriveResume(info trip.ResumeInfo) Event {
	return Event{Type: EventDriveResume, Resume: &info}
}

func DriveEnd(info trip.Info) Event {
	return Event{Type: EventDriveEnd, Drive: &info}
}

func DriveAnalyzed(info trip.Info) Event {
	return Event{Type: EventDriveAnalyzed, Drive: &info}
}

// AccidentEvent picks the potential or final event type from the signal stage.
func AccidentEvent(s accident.Signal) Event {
	if s.Stage == accident.StagePotential {
		return Event{Type: EventPotentialAccident, Accident: &s}
	}
	return Event{Type: EventAccident, Accident: &s}
}

func SettingsChanged(s Settings) Event {
	s.Errors = append([]SettingsError{}, s.Errors...)
	return Event{Type: EventSettingsChanged, Settings: &s}
}

// DriveID returns the trip an event refers to, or "" for settings events.
func (e Event) DriveID() string {
	switch {
	case e.Start != nil:
		return e.Start.DriveID
	case e.Resume != nil:
		return e.Resume.DriveID
	case e.Drive != nil:
		return e.Drive.DriveID
	case e.Accident != nil:
		return e.Accident.DriveID
	}
	return ""
}

// Delegate receives runtime callbacks, one at a time and in order. Embed
// NopDelegate to implement only the callbacks of interest.
type Delegate interface {
	DriveStart(trip.StartInfo)
	DriveResume(trip.ResumeInfo)
	DriveEnd(trip.Info)
	DriveAnalyzed(trip.Info)
	PotentialAccident(accident.Signal)
	Accident(accident.Signal)
	SettingsChanged(Settings)
}

type NopDelegate struct{}

func (NopDelegate) DriveStart(trip.StartInfo)         {}
func (NopDelegate) DriveResume(trip.ResumeInfo)       {}
func (NopDelegate) DriveEnd(trip.Info)                {}
func (NopDelegate) DriveAnalyzed(trip.Info)           {}
func (NopDelegate) PotentialAccident(accident.Signal) {}
func (NopDelegate) Accident(accident.Signal)          {}
func (NopDelegate) SettingsChanged(Settings)          {}

// Dispatch calls the delegate method matching the event type.
func Dispatch(d Delegate, e Event) {
	switch e.Type {
	case EventDriveStart:
		d.DriveStart(*e.Start)
	case EventDriveResume:
		d.DriveResume(*e.Resume)
	case EventDriveEnd:
		d.DriveEnd(*e.Drive)
	case EventDriveAnalyzed:
		d.DriveAnalyzed(*e.Drive)
	case EventPotentialAccident:
		d.PotentialAccident(*e.Accident)
	case EventAccident:
		d.Accident(*e.Accident)
	case EventSettingsChanged:
		d.SettingsChanged(*e.Settings)
	}
}
