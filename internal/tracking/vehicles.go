package tracking

import (
	"context"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

func (r *Runtime) AssociateVehicle(ctx context.Context, vehicleID, bluetoothID string) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if err := r.vehicles.Associate(vehicleID, bluetoothID); err != nil {
			return err
		}
		r.saveAssociations()
		r.log.Debug().Str("vehicle_id", vehicleID).Msg("vehicle associated")
		return nil
	})
}

func (r *Runtime) DissociateVehicle(ctx context.Context, vehicleID string) error {
	return r.do(ctx, func() error {
		if err := r.ready(); err != nil {
			return err
		}
		if err := r.vehicles.Dissociate(vehicleID); err != nil {
			return err
		}
		r.saveAssociations()
		r.log.Debug().Str("vehicle_id", vehicleID).Msg("vehicle dissociated")
		return nil
	})
}

func (r *Runtime) AssociatedVehicles(ctx context.Context) ([]vehicle.Association, error) {
	return call(ctx, r, func() ([]vehicle.Association, error) {
		if err := r.ready(); err != nil {
			return nil, err
		}
		return r.vehicles.Associated(), nil
	})
}
