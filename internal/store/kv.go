package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a storage key has no value.
var ErrNotFound = errors.New("store: key not found")

// GetValue returns the value stored under key.
func (db *DB) GetValue(key string) (string, error) {
	var v string
	err := db.sql.QueryRow(`SELECT value FROM client_storage WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

// SetValues upserts all pairs in a single transaction.
func (db *DB) SetValues(pairs map[string]string) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	now := time.Now().UTC().Format(time.DateTime)
	for k, v := range pairs {
		if _, err := tx.Exec(
			`INSERT INTO client_storage (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// DeleteValues removes the given keys. Missing keys are ignored.
func (db *DB) DeleteValues(keys ...string) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.Exec(`DELETE FROM client_storage WHERE key = ?`, k); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting %s: %w", k, err)
		}
	}
	return tx.Commit()
}
