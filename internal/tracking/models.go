package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/auth"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

type Region string

const (
	RegionUS Region = "us"
	RegionEU Region = "eu"
)

func ParseRegion(s string) (Region, bool) {
	switch Region(strings.ToLower(strings.TrimSpace(s))) {
	case RegionUS:
		return RegionUS, true
	case RegionEU:
		return RegionEU, true
	}
	return "", false
}

// DriverAttributes describe the driver to the backend. Only Group and the
// custom keys are validated; Alias and ServiceLevel are free text.
type DriverAttributes struct {
	Group        string            `json:"group,omitempty"`
	Alias        string            `json:"alias,omitempty"`
	ServiceLevel string            `json:"service_level,omitempty"`
	VehicleType  trip.VehicleType  `json:"vehicle_type"`
	Custom       map[string]string `json:"custom,omitempty"`
}

const maxCustomAttributes = 4

func (a DriverAttributes) validate() error {
	if !ident.ValidID(a.Group, false) {
		return sdkerr.Newf(sdkerr.InvalidParams, "group id must be at most 64 valid characters")
	}
	if len(a.Custom) > maxCustomAttributes {
		return sdkerr.Newf(sdkerr.InvalidParams, "at most %d custom attributes", maxCustomAttributes)
	}
	for k := range a.Custom {
		if !ident.ValidID(k, true) {
			return sdkerr.Newf(sdkerr.InvalidParams, "custom attribute key %q is invalid", k)
		}
	}
	return nil
}

// Config is what Setup needs. Analysis settings fall back to the runtime's
// defaults when zero.
type Config struct {
	ApplicationKey            string           `json:"application_key"`
	DriverID                  string           `json:"driver_id"`
	Mode                      trip.Mode        `json:"drive_detection_mode"`
	Region                    Region           `json:"region"`
	Attributes                DriverAttributes `json:"driver_attributes"`
	MultipleAccidentCallbacks bool             `json:"multiple_accident_callbacks"`
}

// KeyValidator checks an application key. It may block on the network and is
// always called outside the runtime's serialization point.
type KeyValidator interface {
	Validate(ctx context.Context, applicationKey, driverID string) (auth.Grant, error)
}

// State is a snapshot of the runtime.
type State struct {
	Ready            bool        `json:"ready"`
	SettingUp        bool        `json:"setting_up"`
	DriverID         string      `json:"driver_id,omitempty"`
	Region           Region      `json:"region,omitempty"`
	Mode             trip.Mode   `json:"drive_detection_mode"`
	SessionID        string      `json:"session_id,omitempty"`
	Period           trip.Period `json:"insurance_period"`
	PeriodTrackingID string      `json:"period_tracking_id,omitempty"`
	DriveInProgress  bool        `json:"drive_in_progress"`
	Resumable        bool        `json:"resumable"`
	Simulating       bool        `json:"simulating"`
	PendingAnalyses  int         `json:"pending_analyses"`
	Associations     int         `json:"associated_vehicles"`
}

// Options tune the runtime. Zero values select defaults.
type Options struct {
	Now              func() time.Time
	NewID            func() string
	AnalysisTimeout  time.Duration
	AnalysisCapacity int
	ExpiryInterval   time.Duration
}

const (
	defaultAnalysisTimeout  = 10 * time.Minute
	defaultAnalysisCapacity = 32
	defaultExpiryInterval   = 5 * time.Second
)
