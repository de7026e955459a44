package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward-only schema step.
type migration struct {
	version     int
	description string
	stmts       []string
}

// migrations is the ordered schema history. Never edit an applied step; append a new one.
var migrations = []migration{
	{
		version:     1,
		description: "baseline: programs, enrollment, session metadata, attendance",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS program (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				start_date TEXT NOT NULL,
				end_date TEXT NOT NULL,
				default_start_time TEXT NOT NULL,
				default_end_time TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS enrollment (
				program_id TEXT NOT NULL,
				trainee_id TEXT NOT NULL,
				enrolled_at TEXT NOT NULL,
				PRIMARY KEY (program_id, trainee_id),
				FOREIGN KEY (program_id) REFERENCES program(id)
			)`,
			`CREATE TABLE IF NOT EXISTS session_meta (
				program_id TEXT NOT NULL,
				session_date TEXT NOT NULL,
				start_time TEXT NOT NULL DEFAULT '',
				end_time TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'active',
				completed INTEGER NOT NULL DEFAULT 0,
				cancel_reason TEXT NOT NULL DEFAULT '',
				completed_reason TEXT NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				updated_at TEXT NOT NULL,
				updated_by TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (program_id, session_date),
				FOREIGN KEY (program_id) REFERENCES program(id),
				CHECK (NOT (completed = 1 AND status = 'cancelled'))
			)`,
			`CREATE TABLE IF NOT EXISTS attendance_record (
				id TEXT PRIMARY KEY,
				program_id TEXT NOT NULL,
				session_date TEXT NOT NULL,
				trainee_id TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('present', 'absent')),
				remarks TEXT NOT NULL DEFAULT '',
				recorded_at TEXT NOT NULL,
				recorded_by TEXT NOT NULL DEFAULT '',
				UNIQUE (program_id, session_date, trainee_id),
				FOREIGN KEY (program_id) REFERENCES program(id)
			)`,
		},
	},
	{
		version:     2,
		description: "audit trail for session lifecycle actions",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS audit_event (
				id TEXT PRIMARY KEY,
				timestamp TEXT NOT NULL,
				category TEXT NOT NULL,
				action TEXT NOT NULL,
				actor_id TEXT NOT NULL DEFAULT '',
				actor_role TEXT NOT NULL DEFAULT '',
				program_id TEXT NOT NULL DEFAULT '',
				resource_id TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_event_program ON audit_event(program_id, timestamp)`,
		},
	},
	{
		version:     3,
		description: "day lookups for attendance",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_attendance_record_day ON attendance_record(program_id, session_date)`,
		},
	},
}

// LatestSchemaVersion returns the version the migration chain ends at.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the currently applied schema version (0 for an empty database).
// PRE: db is a valid database connection
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// PRE: db is a valid database connection
// POST: Schema is at LatestSchemaVersion; foreign keys enforced
func MigrateDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
		slog.Info("schema_migrated", "version", m.version, "description", m.description)
	}
	return nil
}
