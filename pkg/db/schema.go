package db

import (
	"context"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 2

// Schema SQL for version 1
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Houses (one Insteon installation each)
CREATE TABLE IF NOT EXISTS houses (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE,
    timezone    TEXT NOT NULL DEFAULT 'UTC',
    hub_id      TEXT NOT NULL DEFAULT '',
    is_active   INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- API server config
CREATE TABLE IF NOT EXISTS api_servers (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    house_id    INTEGER NOT NULL UNIQUE REFERENCES houses(id) ON DELETE CASCADE,
    host        TEXT NOT NULL DEFAULT '0.0.0.0',
    port        INTEGER NOT NULL DEFAULT 8080,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Devices, in house collection order
CREATE TABLE IF NOT EXISTS devices (
    house_id     INTEGER NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
    id           TEXT NOT NULL,
    position     INTEGER NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    category     INTEGER NOT NULL DEFAULT 0,
    subcategory  INTEGER NOT NULL DEFAULT 0,
    revision     INTEGER NOT NULL DEFAULT 0,
    is_gateway   INTEGER NOT NULL DEFAULT 0,
    dirty        INTEGER NOT NULL DEFAULT 0,
    last_sync    TEXT,
    updated_at   TEXT NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY (house_id, id)
);

-- Link tables, one row per slot so tombstones keep their position
CREATE TABLE IF NOT EXISTS link_records (
    house_id       INTEGER NOT NULL,
    device_id      TEXT NOT NULL,
    slot           INTEGER NOT NULL,
    destination_id TEXT NOT NULL,
    is_controller  INTEGER NOT NULL,
    group_num      INTEGER NOT NULL,
    data1          INTEGER NOT NULL DEFAULT 0,
    data2          INTEGER NOT NULL DEFAULT 0,
    data3          INTEGER NOT NULL DEFAULT 0,
    deleted        INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (house_id, device_id, slot),
    FOREIGN KEY (house_id, device_id) REFERENCES devices(house_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_houses_active ON houses(is_active);
CREATE INDEX IF NOT EXISTS idx_devices_house ON devices(house_id, position);
`

// Schema SQL for version 2: job history
const schemaV2 = `
CREATE TABLE IF NOT EXISTS job_runs (
    id           TEXT PRIMARY KEY,
    house_id     INTEGER NOT NULL REFERENCES houses(id) ON DELETE CASCADE,
    kind         TEXT NOT NULL,
    state        TEXT NOT NULL,
    success      INTEGER NOT NULL,
    cancelled    INTEGER NOT NULL,
    processed    INTEGER NOT NULL,
    total        INTEGER NOT NULL,
    failures     TEXT NOT NULL DEFAULT '[]',
    error        TEXT NOT NULL DEFAULT '',
    started_at   TEXT NOT NULL,
    completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_runs_house ON job_runs(house_id, completed_at);
`

var migrations = []string{schemaV1, schemaV2}

// Migrate runs database migrations to bring the schema up to date.
func (db *DB) Migrate(ctx context.Context) error {
	version, err := db.getSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for v := version + 1; v <= currentSchemaVersion; v++ {
		if err := db.applySchema(ctx, v, migrations[v-1]); err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", v, err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, or 0 if no schema exists.
func (db *DB) getSchemaVersion(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&count)
	if err != nil {
		return 0, err
	}

	if count == 0 {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

func (db *DB) applySchema(ctx context.Context, version int, ddl string) error {
	return db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}

		return nil
	})
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	return db.getSchemaVersion(ctx)
}
