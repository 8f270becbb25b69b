package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// SchemaVersion is bumped on any incompatible table change.
const SchemaVersion = 1

const (
	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS schema_versions (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS shots (
		id          TEXT PRIMARY KEY,
		started_at  INTEGER NOT NULL,
		ended_at    INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL CHECK (duration_ms >= 0)
	);
	CREATE INDEX IF NOT EXISTS shots_started_at ON shots (started_at);
	CREATE TABLE IF NOT EXISTS readings (
		timestamp   INTEGER NOT NULL,
		steam       INTEGER,
		steam_target INTEGER,
		hx          INTEGER,
		heating     INTEGER CHECK (heating IN (0, 1))
	);`

	insertShotSQL = `
	INSERT INTO shots (id, started_at, ended_at, duration_ms)
	VALUES (?, ?, ?, ?)`

	insertReadingSQL = `
	INSERT INTO readings (timestamp, steam, steam_target, hx, heating)
	VALUES (?, ?, ?, ?, ?)`

	recentShotsSQL = `
	SELECT id, started_at, ended_at, duration_ms
	FROM shots
	ORDER BY started_at DESC
	LIMIT ?`
)

// ensureSchema creates the tables on a fresh database and refuses to run
// against one written by a newer or older schema.
func ensureSchema(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	version, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	switch {
	case version == SchemaVersion:
		return nil
	case version != 0:
		return fmt.Errorf("history: schema version %d, want %d", version, SchemaVersion)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin schema: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("schema rollback failed")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("history: create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("history: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit schema: %w", err)
	}
	committed = true

	log.Info().Int("version", SchemaVersion).Msg("history schema created")
	return nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sqlite_master
			WHERE type='table' AND name='schema_versions'
		)`).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("history: check schema table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx,
		`SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("history: read schema version: %w", err)
	}
	return version, nil
}
