// Package sdkerr defines the reported failures returned by request APIs.
// Callbacks never carry these; silent no-ops return nil instead.
package sdkerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	InvalidSDKKey Kind = iota
	NetworkUnreachable
	InvalidParams
	InternalFailure
	NotSetup
	PeriodUnchanged
	InvalidTrackingID
	NotTornDown
	IOError
	InvalidRegion
	RegionUnsupported
	UnauthorizedRegionSwitch
	UserDeprovisioned
	UnsupportedVehicleType
	NotTrackingManually
	NothingToResume

	InvalidVehicleInfo
	AssociatedVehicleConflict
	AssociatedVehiclesLimitExceeded
	InvalidVehicleID
	VehicleNotAssociated

	MockInvalidRunTime
	MockAutoDetectionNotOn
	MockSimulationInProgress
)

var kindNames = map[Kind]string{
	InvalidSDKKey:                   "invalid_sdk_key",
	NetworkUnreachable:              "network_unreachable",
	InvalidParams:                   "invalid_params",
	InternalFailure:                 "internal_failure",
	NotSetup:                        "not_setup",
	PeriodUnchanged:                 "period_unchanged",
	InvalidTrackingID:               "invalid_tracking_id",
	NotTornDown:                     "not_torn_down",
	IOError:                         "io_error",
	InvalidRegion:                   "invalid_region",
	RegionUnsupported:               "region_unsupported",
	UnauthorizedRegionSwitch:        "unauthorized_region_switch",
	UserDeprovisioned:               "user_deprovisioned",
	UnsupportedVehicleType:          "unsupported_vehicle_type",
	NotTrackingManually:             "not_tracking_manually",
	NothingToResume:                 "nothing_to_resume",
	InvalidVehicleInfo:              "invalid_vehicle_info",
	AssociatedVehicleConflict:       "associated_vehicle_conflict",
	AssociatedVehiclesLimitExceeded: "associated_vehicles_limit_exceeded",
	InvalidVehicleID:                "invalid_vehicle_id",
	VehicleNotAssociated:            "vehicle_not_associated",
	MockInvalidRunTime:              "mock_invalid_run_time",
	MockAutoDetectionNotOn:          "mock_auto_detection_not_on",
	MockSimulationInProgress:        "mock_simulation_in_progress",
}

var descriptions = map[Kind]string{
	InvalidSDKKey:                   "not a valid SDK key",
	NetworkUnreachable:              "network not reachable",
	InvalidParams:                   "invalid character set found in input parameters",
	InternalFailure:                 "internal error, setup again",
	NotSetup:                        "api called before setup completed",
	PeriodUnchanged:                 "period hasn't changed, action ignored",
	InvalidTrackingID:               "tracking id is invalid, action ignored",
	NotTornDown:                     "runtime not torn down, teardown to continue",
	IOError:                         "persisted state could not be read or written",
	InvalidRegion:                   "not a valid region",
	RegionUnsupported:               "application is not allowed to use this region",
	UnauthorizedRegionSwitch:        "region change not allowed, wipe persisted state before changing region",
	UserDeprovisioned:               "user is not allowed to use this application",
	UnsupportedVehicleType:          "vehicle type is not supported for this application",
	NotTrackingManually:             "no manual drive in progress",
	NothingToResume:                 "no persisted drive to resume",
	InvalidVehicleInfo:              "vehicle id must be 1-64 valid characters and bluetooth id a valid mac address",
	AssociatedVehicleConflict:       "vehicle id or bluetooth id conflicts with an already associated vehicle",
	AssociatedVehiclesLimitExceeded: "can't associate more than two vehicles",
	InvalidVehicleID:                "vehicle id must be 1-64 valid characters",
	VehicleNotAssociated:            "can't dissociate a vehicle which is not associated",
	MockInvalidRunTime:              "simulation run time must be positive and at most 5 hours",
	MockAutoDetectionNotOn:          "mock drives require auto-on drive detection",
	MockSimulationInProgress:        "a simulation is already in progress",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a reported failure with a specific kind and a human-readable description.
type Error struct {
	Kind        Kind
	Description string
}

func New(kind Kind) *Error {
	return &Error{Kind: kind, Description: descriptions[kind]}
}

// Newf overrides the default description.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Description
}

// Is matches any *Error of the same kind, so errors.Is(err, sdkerr.New(k)) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf extracts the kind of a reported failure. ok is false for other errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a reported failure of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
	}{e.Kind.String(), e.Description})
}

// StatusCode maps a reported failure to the HTTP status the bridge answers with.
func StatusCode(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case InvalidSDKKey:
		return http.StatusUnauthorized
	case UserDeprovisioned, RegionUnsupported, UnauthorizedRegionSwitch, UnsupportedVehicleType:
		return http.StatusForbidden
	case NotSetup, NotTornDown, PeriodUnchanged, NotTrackingManually, NothingToResume,
		AssociatedVehicleConflict, AssociatedVehiclesLimitExceeded, MockSimulationInProgress, MockAutoDetectionNotOn:
		return http.StatusConflict
	case VehicleNotAssociated:
		return http.StatusNotFound
	case NetworkUnreachable:
		return http.StatusServiceUnavailable
	case InternalFailure, IOError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
