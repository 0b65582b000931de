package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Schema version tracking
const currentSchemaVersion = 1

const versionTable = "lifesignal_schema_version"

// SourceTables lists the tracker tables InitSourceSchema creates, in
// creation order.
var SourceTables = []string{
	"asana_items",
	"toggl_items",
	"habitica_items",
	"google_fit_steps",
	"samsung_health_workouts",
}

// sourceDDL returns the CREATE statements for the tracker tables. Column
// types come from the dialect so the same layout works on both drivers.
func sourceDDL(d Dialect) []string {
	ts, b, r := d.TimestampType(), d.BoolType(), d.RealType()
	return []string{
		`CREATE TABLE IF NOT EXISTS asana_items (
			task_id TEXT PRIMARY KEY,
			task_name TEXT,
			project TEXT,
			task_description TEXT,
			completed ` + b + `,
			date ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_asana_items_date ON asana_items(date)`,

		`CREATE TABLE IF NOT EXISTS toggl_items (
			id TEXT PRIMARY KEY,
			description TEXT,
			project_name TEXT,
			tags TEXT,
			start_time ` + ts + `,
			duration_minutes ` + r + `,
			billable ` + b + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_toggl_items_start ON toggl_items(start_time)`,

		`CREATE TABLE IF NOT EXISTS habitica_items (
			item_id TEXT PRIMARY KEY,
			item_name TEXT,
			item_type TEXT,
			notes TEXT,
			tags TEXT,
			completed ` + b + `,
			date_completed ` + ts + `,
			value ` + r + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habitica_items_completed ON habitica_items(date_completed)`,

		`CREATE TABLE IF NOT EXISTS google_fit_steps (
			id TEXT PRIMARY KEY,
			timestamp ` + ts + `,
			steps ` + r + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_google_fit_steps_ts ON google_fit_steps(timestamp)`,

		`CREATE TABLE IF NOT EXISTS samsung_health_workouts (
			id TEXT PRIMARY KEY,
			workout_type TEXT,
			notes TEXT,
			start_time ` + ts + `,
			end_time ` + ts + `,
			duration_minutes ` + r + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samsung_health_workouts_start ON samsung_health_workouts(start_time)`,
	}
}

// InitSourceSchema creates the tracker tables and records the schema
// version. It is idempotent.
func (db *DB) InitSourceSchema(ctx context.Context) error {
	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(ctx, tx); err != nil {
			return err
		}
		for _, stmt := range sourceDDL(db.dialect) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create tracker schema: %w", err)
			}
		}
		if err := db.setSchemaVersion(ctx, tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("tracker schema initialized", "version", currentSchemaVersion, "tables", strings.Join(SourceTables, ","))
		return nil
	})
}

// SchemaVersion returns the recorded version, or 0 for a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	exists, err := db.TableExists(ctx, versionTable)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema version table: %w", err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.conn.QueryRowContext(ctx, "SELECT version FROM "+versionTable+" LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (db *DB) setSchemaVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+versionTable); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO "+versionTable+" (version) VALUES ("+db.dialect.Placeholder(1)+")", version)
	return err
}

// createSchemaVersionTable creates the schema version tracking table
func createSchemaVersionTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+versionTable+" (version INTEGER NOT NULL)")
	return err
}
