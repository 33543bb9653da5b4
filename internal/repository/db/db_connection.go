package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaPasscodes = `
CREATE TABLE IF NOT EXISTS passcodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code_hash TEXT NOT NULL,
    code_masked TEXT NOT NULL,
    code_enc BLOB,
    is_main BOOLEAN NOT NULL DEFAULT 0,
    is_one_time BOOLEAN NOT NULL DEFAULT 0,
    used BOOLEAN NOT NULL DEFAULT 0,
    valid_until TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);
`

const schemaAccessLog = `
CREATE TABLE IF NOT EXISTS access_log (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    method TEXT NOT NULL,
    result TEXT NOT NULL,
    passcode_masked TEXT,
    confidence REAL
);
`

// Single-row table; id is pinned to 1 and every column carries the safe
// default so a fresh row is fully usable.
const schemaSettings = `
CREATE TABLE IF NOT EXISTS settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    passcode_enabled BOOLEAN NOT NULL DEFAULT 1,
    fingerprint_enabled BOOLEAN NOT NULL DEFAULT 1,
    face_recognition_enabled BOOLEAN NOT NULL DEFAULT 1,
    hold_time_sec INTEGER NOT NULL DEFAULT 5,
    door_state TEXT NOT NULL DEFAULT 'close'
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaPasscodes,
		schemaAccessLog,
		schemaSettings,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
