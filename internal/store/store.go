// Package store persists the state the runtime needs across restarts: the
// locked region, the active trip checkpoint, completed trip reports and the
// vehicle associations.
package store

import (
	"context"
	"errors"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

// ErrNotFound is returned for missing single-row lookups.
var ErrNotFound = errors.New("store: not found")

const regionKey = "region"

type Store interface {
	Region(ctx context.Context) (string, error)
	SaveRegion(ctx context.Context, region string) error

	// Checkpoint returns the last saved active trip, or ErrNotFound.
	Checkpoint(ctx context.Context) (*trip.Trip, error)
	SaveCheckpoint(ctx context.Context, t *trip.Trip) error
	ClearCheckpoint(ctx context.Context) error

	// SaveTrip upserts a trip report; an analyzed report replaces an estimate.
	SaveTrip(ctx context.Context, info trip.Info) error
	Trip(ctx context.Context, driveID string) (trip.Info, error)
	Trips(ctx context.Context) ([]trip.Info, error)

	Associations(ctx context.Context) ([]vehicle.Association, error)
	SaveAssociations(ctx context.Context, items []vehicle.Association) error

	// Wipe erases everything, including the locked region.
	Wipe(ctx context.Context) error
	Close() error
}
