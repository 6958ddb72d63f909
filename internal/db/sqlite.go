package db

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the on-device database. A single connection keeps
// ":memory:" databases coherent and serializes writers.
func OpenSQLite(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
