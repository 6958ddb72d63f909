package trip

import "strings"

// Unrecognized raw values fall back to a safe default instead of failing so
// that values introduced by newer peers still decode.

// Mode is the global drive detection mode.
type Mode int

const (
	ModeAutoOn Mode = iota
	ModeAutoOff
	ModeInsurance
)

var modeNames = []string{"auto_on", "auto_off", "insurance"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return modeNames[ModeAutoOn]
	}
	return modeNames[m]
}

// ModeFromRaw falls back to ModeAutoOn.
func ModeFromRaw(raw int) Mode {
	if raw < 0 || raw >= len(modeNames) {
		return ModeAutoOn
	}
	return Mode(raw)
}

// ParseMode falls back to ModeAutoOn.
func ParseMode(s string) Mode {
	return Mode(indexOr(modeNames, s, int(ModeAutoOn)))
}

// Period is the insurance period a trip belongs to.
type Period int

const (
	NoPeriod Period = iota
	Period1
	Period2
	Period3
)

var periodNames = []string{"none", "period1", "period2", "period3"}

func (p Period) String() string {
	if p < 0 || int(p) >= len(periodNames) {
		return periodNames[NoPeriod]
	}
	return periodNames[p]
}

// PeriodFromRaw falls back to NoPeriod.
func PeriodFromRaw(raw int) Period {
	if raw < 0 || raw >= len(periodNames) {
		return NoPeriod
	}
	return Period(raw)
}

// ParsePeriod falls back to NoPeriod.
func ParsePeriod(s string) Period {
	return Period(indexOr(periodNames, s, int(NoPeriod)))
}

// Trigger records what started a trip.
type Trigger int

const (
	TriggerAuto Trigger = iota
	TriggerManual
	TriggerPeriod
)

var triggerNames = []string{"auto", "manual", "period"}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return triggerNames[TriggerAuto]
	}
	return triggerNames[t]
}

// Manual reports whether the trip was started by the host rather than detected.
func (t Trigger) Manual() bool {
	return t == TriggerManual || t == TriggerPeriod
}

type DriveType int

const (
	DriveTypeInvalid DriveType = iota
	DriveTypeNonDriving
	DriveTypeDrive
)

var driveTypeNames = []string{"invalid", "non_driving", "drive"}

func (d DriveType) String() string {
	if d < 0 || int(d) >= len(driveTypeNames) {
		return driveTypeNames[DriveTypeDrive]
	}
	return driveTypeNames[d]
}

// DriveTypeFromRaw falls back to DriveTypeDrive.
func DriveTypeFromRaw(raw int) DriveType {
	if raw < 0 || raw >= len(driveTypeNames) {
		return DriveTypeDrive
	}
	return DriveType(raw)
}

type UserMode int

const (
	UserModeDriver UserMode = iota
	UserModePassenger
	UserModeUnavailable
)

var userModeNames = []string{"driver", "passenger", "unavailable"}

func (u UserMode) String() string {
	if u < 0 || int(u) >= len(userModeNames) {
		return userModeNames[UserModeDriver]
	}
	return userModeNames[u]
}

// UserModeFromRaw falls back to UserModeDriver.
func UserModeFromRaw(raw int) UserMode {
	if raw < 0 || raw >= len(userModeNames) {
		return UserModeDriver
	}
	return UserMode(raw)
}

type VehicleType int

const (
	VehicleCar VehicleType = iota
	VehicleMotorcycle
)

var vehicleTypeNames = []string{"car", "motorcycle"}

func (v VehicleType) String() string {
	if v < 0 || int(v) >= len(vehicleTypeNames) {
		return vehicleTypeNames[VehicleCar]
	}
	return vehicleTypeNames[v]
}

// ParseVehicleType falls back to VehicleCar.
func ParseVehicleType(s string) VehicleType {
	return VehicleType(indexOr(vehicleTypeNames, s, int(VehicleCar)))
}

// Quality is the tier of a trip report.
type Quality int

const (
	QualityEstimated Quality = iota
	QualityAnalyzed
)

func (q Quality) String() string {
	if q == QualityAnalyzed {
		return "analyzed"
	}
	return "estimated"
}

type EventType int

const (
	EventHardBrake EventType = iota
	EventAggressiveAcceleration
	EventPhoneHandling
	EventOverSpeeding
	EventAccident
	EventHardTurn
	EventPhoneScreenInteraction
	EventStopSignViolation
)

var eventTypeNames = []string{
	"hard_brake", "aggressive_acceleration", "phone_handling", "over_speeding",
	"accident", "hard_turn", "phone_screen_interaction", "stop_sign_violation",
}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[e]
}

// ParseEventType reports ok=false for unknown names; events have no safe default.
func ParseEventType(s string) (EventType, bool) {
	i := indexOr(eventTypeNames, s, -1)
	return EventType(i), i >= 0
}

type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityHigh
)

var severityNames = []string{"none", "low", "high"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return severityNames[SeverityNone]
	}
	return severityNames[s]
}

// ParseSeverity falls back to SeverityNone.
func ParseSeverity(s string) Severity {
	return Severity(indexOr(severityNames, s, int(SeverityNone)))
}

func indexOr(names []string, s string, fallback int) int {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i
		}
	}
	return fallback
}
