// Package store is the durable client-side storage. It is backed by SQLite and
// holds the only state that survives a restart: the session token pair.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/soyeahso/skillswap/internal/logging"
)

// schema lists the upgrade steps in order. Step i brings the file to
// user_version i+1; steps are append-only.
var schema = []string{
	`CREATE TABLE client_storage (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}

// DB is the client storage file.
type DB struct {
	sql *sql.DB
	log *logging.Logger
}

// Open opens or creates the storage file at path and upgrades its schema.
// ":memory:" gives a throwaway database for tests.
func Open(path string, log *logging.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// one connection keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB, log: log.Sub("store")}
	if err := db.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	db.log.Debug().Str("path", path).Msg("storage opened")
	return db, nil
}

func (db *DB) init() error {
	if _, err := db.sql.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}
	return db.upgrade()
}

// Close closes the storage file.
func (db *DB) Close() error {
	return db.sql.Close()
}

// version reports the schema version recorded in the file.
func (db *DB) version() (int, error) {
	var v int
	if err := db.sql.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// upgrade applies every schema step the file has not seen yet.
func (db *DB) upgrade() error {
	from, err := db.version()
	if err != nil {
		return err
	}
	if from > len(schema) {
		return fmt.Errorf("storage schema v%d is newer than this client (v%d)", from, len(schema))
	}

	for v := from; v < len(schema); v++ {
		tx, err := db.sql.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(schema[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema step %d: %w", v+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording schema v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		db.log.Debug().Int("version", v+1).Msg("schema upgraded")
	}
	return nil
}
