package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/db"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

// PostgresSchema creates the tables used by Postgres. Rows are scoped by
// driver so several runtimes can share one database.
const PostgresSchema = `
	CREATE TABLE IF NOT EXISTS driver_settings (
		driver_id   TEXT NOT NULL,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		PRIMARY KEY (driver_id, key)
	);
	CREATE TABLE IF NOT EXISTS trip_checkpoints (
		driver_id   TEXT PRIMARY KEY,
		trip        JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS trip_reports (
		driver_id   TEXT NOT NULL,
		drive_id    TEXT NOT NULL,
		quality     INT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		info        JSONB NOT NULL,
		PRIMARY KEY (driver_id, drive_id)
	);
	CREATE TABLE IF NOT EXISTS vehicle_associations (
		driver_id    TEXT NOT NULL,
		position     INT NOT NULL,
		vehicle_id   TEXT NOT NULL,
		bluetooth_id TEXT NOT NULL,
		PRIMARY KEY (driver_id, vehicle_id)
	);
`

// Postgres stores one driver's state in a shared database.
type Postgres struct {
	db       db.Querier
	driverID string
}

func NewPostgres(q db.Querier, driverID string) *Postgres {
	return &Postgres{db: q, driverID: driverID}
}

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, PostgresSchema)
	return err
}

func (s *Postgres) Region(ctx context.Context) (string, error) {
	var region string
	err := s.db.QueryRow(ctx, `
		SELECT value FROM driver_settings WHERE driver_id=$1 AND key=$2
	`, s.driverID, regionKey).Scan(&region)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return region, err
}

func (s *Postgres) SaveRegion(ctx context.Context, region string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_settings (driver_id, key, value) VALUES ($1,$2,$3)
		ON CONFLICT (driver_id, key) DO UPDATE SET value = EXCLUDED.value
	`, s.driverID, regionKey, region)
	return err
}

func (s *Postgres) Checkpoint(ctx context.Context) (*trip.Trip, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT trip FROM trip_checkpoints WHERE driver_id=$1`, s.driverID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t trip.Trip
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &t, nil
}

func (s *Postgres) SaveCheckpoint(ctx context.Context, t *trip.Trip) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO trip_checkpoints (driver_id, trip, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (driver_id) DO UPDATE SET trip = EXCLUDED.trip, updated_at = EXCLUDED.updated_at
	`, s.driverID, raw, t.UpdatedAt)
	return err
}

func (s *Postgres) ClearCheckpoint(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DELETE FROM trip_checkpoints WHERE driver_id=$1`, s.driverID)
	return err
}

func (s *Postgres) SaveTrip(ctx context.Context, info trip.Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO trip_reports (driver_id, drive_id, quality, started_at, info) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (driver_id, drive_id) DO UPDATE SET quality = EXCLUDED.quality, info = EXCLUDED.info
		WHERE EXCLUDED.quality >= trip_reports.quality
	`, s.driverID, info.DriveID, int(info.Quality), info.StartedAt, raw)
	return err
}

func (s *Postgres) Trip(ctx context.Context, driveID string) (trip.Info, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT info FROM trip_reports WHERE driver_id=$1 AND drive_id=$2
	`, s.driverID, driveID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return trip.Info{}, ErrNotFound
	}
	if err != nil {
		return trip.Info{}, err
	}
	var info trip.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return trip.Info{}, fmt.Errorf("decode trip: %w", err)
	}
	return info, nil
}

func (s *Postgres) Trips(ctx context.Context) ([]trip.Info, error) {
	rows, err := s.db.Query(ctx, `
		SELECT info FROM trip_reports WHERE driver_id=$1
		ORDER BY started_at
	`, s.driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trip.Info
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var info trip.Info
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("decode trip: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Postgres) Associations(ctx context.Context) ([]vehicle.Association, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vehicle_id, bluetooth_id FROM vehicle_associations WHERE driver_id=$1
		ORDER BY position
	`, s.driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vehicle.Association
	for rows.Next() {
		var a vehicle.Association
		if err := rows.Scan(&a.VehicleID, &a.BluetoothID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveAssociations(ctx context.Context, items []vehicle.Association) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM vehicle_associations WHERE driver_id=$1`, s.driverID); err != nil {
		return err
	}
	for i, a := range items {
		_, err := s.db.Exec(ctx, `
			INSERT INTO vehicle_associations (driver_id, position, vehicle_id, bluetooth_id) VALUES ($1,$2,$3,$4)
		`, s.driverID, i, a.VehicleID, a.BluetoothID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) Wipe(ctx context.Context) error {
	for _, table := range []string{"driver_settings", "trip_checkpoints", "trip_reports", "vehicle_associations"} {
		if _, err := s.db.Exec(ctx, `DELETE FROM `+table+` WHERE driver_id=$1`, s.driverID); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (s *Postgres) Close() error {
	return nil
}
