package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielchangsoojones/zendrive-sdk-2/internal/db"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/trip"
	"github.com/danielchangsoojones/zendrive-sdk-2/internal/vehicle"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS settings (
		key               TEXT PRIMARY KEY,
		value             TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS checkpoint (
		id                INTEGER PRIMARY KEY CHECK (id = 1),
		trip_json         TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS trips (
		drive_id          TEXT PRIMARY KEY,
		quality           INTEGER NOT NULL,
		started_at        TEXT NOT NULL,
		info_json         TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS vehicles (
		position          INTEGER NOT NULL,
		vehicle_id        TEXT PRIMARY KEY,
		bluetooth_id      TEXT NOT NULL
	);
`

// sortableTime keeps TEXT timestamps ordered lexicographically.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is the on-device store.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	conn, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) Region(ctx context.Context) (string, error) {
	var region string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, regionKey).Scan(&region)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return region, err
}

func (s *SQLite) SaveRegion(ctx context.Context, region string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, regionKey, region)
	return err
}

func (s *SQLite) Checkpoint(ctx context.Context) (*trip.Trip, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT trip_json FROM checkpoint WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var t trip.Trip
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &t, nil
}

func (s *SQLite) SaveCheckpoint(ctx context.Context, t *trip.Trip) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, trip_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET trip_json = excluded.trip_json, updated_at = excluded.updated_at
	`, string(raw), t.UpdatedAt.UTC().Format(sortableTime))
	return err
}

func (s *SQLite) ClearCheckpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoint`)
	return err
}

func (s *SQLite) SaveTrip(ctx context.Context, info trip.Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trips (drive_id, quality, started_at, info_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(drive_id) DO UPDATE SET quality = excluded.quality, info_json = excluded.info_json
		WHERE excluded.quality >= trips.quality
	`, info.DriveID, int(info.Quality), info.StartedAt.UTC().Format(sortableTime), string(raw))
	return err
}

func (s *SQLite) Trip(ctx context.Context, driveID string) (trip.Info, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT info_json FROM trips WHERE drive_id = ?`, driveID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return trip.Info{}, ErrNotFound
	}
	if err != nil {
		return trip.Info{}, err
	}
	var info trip.Info
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return trip.Info{}, fmt.Errorf("decode trip: %w", err)
	}
	return info, nil
}

func (s *SQLite) Trips(ctx context.Context) ([]trip.Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT info_json FROM trips ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trip.Info
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var info trip.Info
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("decode trip: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLite) Associations(ctx context.Context) ([]vehicle.Association, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vehicle_id, bluetooth_id FROM vehicles ORDER BY position`)
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

func (s *SQLite) SaveAssociations(ctx context.Context, items []vehicle.Association) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles`); err != nil {
		return err
	}
	for i, a := range items {
		if _, err := tx.ExecContext(ctx, `INSERT INTO vehicles (position, vehicle_id, bluetooth_id) VALUES (?, ?, ?)`, i, a.VehicleID, a.BluetoothID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) Wipe(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM settings;
		DELETE FROM checkpoint;
		DELETE FROM trips;
		DELETE FROM vehicles;
	`)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
