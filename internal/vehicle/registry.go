// Package vehicle keeps the driver's vehicle associations and picks the
// vehicle a finished trip was taken in from its bluetooth audio route history.
package vehicle

import (
	"time"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/sdkerr"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/shared/ident"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
)

const (
	MaxAssociations = 2
	// TagKey is the trip tag carrying the detected vehicle id.
	TagKey = "vehicle_id"
)

type Association struct {
	VehicleID   string `json:"vehicle_id"`
	BluetoothID string `json:"bluetooth_id"`
}

// Registry is not safe for concurrent use; the tracking runtime owns it.
type Registry struct {
	items []Association
}

// NewRegistry restores persisted associations. Malformed or surplus entries are
// dropped.
func NewRegistry(initial []Association) *Registry {
	r := &Registry{}
	for _, a := range initial {
		_ = r.Associate(a.VehicleID, a.BluetoothID)
	}
	return r
}

// Associate binds a vehicle to a bluetooth device. A conflict with an existing
// association is reported before the registry limit.
func (r *Registry) Associate(vehicleID, bluetoothID string) error {
	if !ident.ValidID(vehicleID, true) || !ident.ValidMAC(bluetoothID) {
		return sdkerr.New(sdkerr.InvalidVehicleInfo)
	}
	mac := ident.NormalizeMAC(bluetoothID)
	for _, a := range r.items {
		if a.VehicleID == vehicleID || a.BluetoothID == mac {
			return sdkerr.Newf(sdkerr.AssociatedVehicleConflict, "vehicle %s already uses this vehicle id or bluetooth id", a.VehicleID)
		}
	}
	if len(r.items) >= MaxAssociations {
		return sdkerr.New(sdkerr.AssociatedVehiclesLimitExceeded)
	}
	r.items = append(r.items, Association{VehicleID: vehicleID, BluetoothID: mac})
	return nil
}

func (r *Registry) Dissociate(vehicleID string) error {
	if !ident.ValidID(vehicleID, true) {
		return sdkerr.New(sdkerr.InvalidVehicleID)
	}
	for i, a := range r.items {
		if a.VehicleID == vehicleID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return sdkerr.New(sdkerr.VehicleNotAssociated)
}

// Associated returns a copy of the current associations in insertion order.
func (r *Registry) Associated() []Association {
	return append([]Association(nil), r.items...)
}

// TagForTrip returns the associated vehicle whose bluetooth link held the audio
// route for the longest contiguous span within [start, end]. Ties go to the
// span that connected last.
func (r *Registry) TagForTrip(routes []trip.RouteSpan, start, end time.Time) (string, bool) {
	var (
		best     string
		bestDur  time.Duration
		bestFrom time.Time
	)
	for _, span := range routes {
		vehicleID, ok := r.vehicleFor(span.BluetoothID)
		if !ok {
			continue
		}
		from, to := span.ConnectedAt, span.DisconnectedAt
		if to.IsZero() || to.After(end) {
			to = end
		}
		if from.Before(start) {
			from = start
		}
		d := to.Sub(from)
		if d <= 0 {
			continue
		}
		if d > bestDur || (d == bestDur && span.ConnectedAt.After(bestFrom)) {
			best, bestDur, bestFrom = vehicleID, d, span.ConnectedAt
		}
	}
	return best, best != ""
}

// TagTrip sets the vehicle tag on info when a vehicle was detected.
func (r *Registry) TagTrip(info *trip.Info, routes []trip.RouteSpan) {
	if id, ok := r.TagForTrip(routes, info.StartedAt, info.EndedAt); ok {
		info.SetTag(TagKey, id)
	}
}

// VehicleForTrip reads back the vehicle tag of a trip report.
func VehicleForTrip(info trip.Info) (string, bool) {
	id := info.TagValue(TagKey)
	return id, id != ""
}

func (r *Registry) vehicleFor(bluetoothID string) (string, bool) {
	mac := ident.NormalizeMAC(bluetoothID)
	for _, a := range r.items {
		if a.BluetoothID == mac {
			return a.VehicleID, true
		}
	}
	return "", false
}
