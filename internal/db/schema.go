package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// documents holds whole JSON documents keyed by name (cargo_inspections,
// pending_sync, ...). Each mutation replaces a document in one statement.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_share_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS export_runs (
    id           TEXT PRIMARY KEY,
    state        TEXT NOT NULL CHECK (state IN ('completed', 'failed')),
    sink         TEXT NOT NULL,
    layout       TEXT NOT NULL,
    record_count INTEGER NOT NULL DEFAULT 0,
    output_root  TEXT NOT NULL DEFAULT '',
    message      TEXT,
    error_code   TEXT,
    started_at   DATETIME NOT NULL,
    finished_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_export_runs_started
    ON export_runs(started_at);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
