// Package sqlitetest opens migrated in-memory databases for store tests.
package sqlitetest

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"programdesk/internal/adapters/storage"
)

// Open returns a migrated in-memory SQLite database closed at test cleanup.
// The pool is pinned to one connection so every query sees the same memory database.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// SeedProgram inserts a bare program row so foreign keys resolve.
func SeedProgram(t testing.TB, db *sql.DB, id, start, end string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO program (id, name, start_date, end_date, default_start_time, default_end_time)
		VALUES (?, ?, ?, ?, '08:00', '17:00')`, id, "Program "+id, start, end)
	if err != nil {
		t.Fatalf("failed to seed program: %v", err)
	}
}
