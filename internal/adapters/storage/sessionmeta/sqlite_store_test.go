package sessionmeta_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"programdesk/internal/adapters/storage/sessionmeta"
	"programdesk/internal/adapters/storage/sqlitetest"
	"programdesk/internal/domain/session"
)

func testKey(day int) session.Key {
	return session.Key{ProgramID: "p1", Date: session.NewDate(2026, 3, day)}
}

// TestSQLiteStore_GetMissing tests that an untouched day has no override.
func TestSQLiteStore_GetMissing(t *testing.T) {
	db := sqlitetest.Open(t)
	sqlitetest.SeedProgram(t, db, "p1", "2026-03-01", "2026-03-31")
	store := sessionmeta.NewSQLiteStore(db)

	o, found, err := store.Get(context.Background(), testKey(4))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Errorf("found = true for untouched day, override %+v", o)
	}
}

// TestSQLiteStore_SaveVersioning tests insert, update and stale-version rejection.
func TestSQLiteStore_SaveVersioning(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	sqlitetest.SeedProgram(t, db, "p1", "2026-03-01", "2026-03-31")
	store := sessionmeta.NewSQLiteStore(db)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	o := session.NewOverride(testKey(4))
	if err := o.SetTimes("09:00", "12:30"); err != nil {
		t.Fatalf("SetTimes: %v", err)
	}
	o.UpdatedAt = now
	o.UpdatedBy = "coach-1"

	saved, err := store.Save(ctx, o)
	if err != nil {
		t.Fatalf("Save(insert): %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("Version after insert = %d, want 1", saved.Version)
	}

	// A second writer that also started from "never stored" loses.
	if _, err := store.Save(ctx, o); !errors.Is(err, session.ErrVersionConflict) {
		t.Errorf("duplicate insert error = %v, want ErrVersionConflict", err)
	}

	if err := saved.Cancel("storm"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	updated, err := store.Save(ctx, saved)
	if err != nil {
		t.Fatalf("Save(update): %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version after update = %d, want 2", updated.Version)
	}

	// saved still carries version 1.
	if _, err := store.Save(ctx, saved); !errors.Is(err, session.ErrVersionConflict) {
		t.Errorf("stale update error = %v, want ErrVersionConflict", err)
	}

	got, found, err := store.Get(ctx, testKey(4))
	if err != nil || !found {
		t.Fatalf("Get = %v, %v", found, err)
	}
	if got.Status != session.StatusCancelled || got.CancelReason != "storm" {
		t.Errorf("status/reason = %q/%q, want cancelled/storm", got.Status, got.CancelReason)
	}
	if got.StartTime != "09:00" || got.EndTime != "12:30" {
		t.Errorf("times = %s-%s, want 09:00-12:30", got.StartTime, got.EndTime)
	}
	if got.Version != 2 || got.UpdatedBy != "coach-1" {
		t.Errorf("version/by = %d/%q", got.Version, got.UpdatedBy)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
}

// TestSQLiteStore_RejectsCompletedCancelled tests the schema guard against
// a row that is both completed and cancelled.
func TestSQLiteStore_RejectsCompletedCancelled(t *testing.T) {
	db := sqlitetest.Open(t)
	sqlitetest.SeedProgram(t, db, "p1", "2026-03-01", "2026-03-31")
	store := sessionmeta.NewSQLiteStore(db)

	o := session.NewOverride(testKey(5))
	o.Status = session.StatusCancelled
	o.Completed = true
	if _, err := store.Save(context.Background(), o); err == nil {
		t.Error("expected CHECK constraint failure")
	}
}

// TestSQLiteStore_ListByProgram tests date ordering and program scoping.
func TestSQLiteStore_ListByProgram(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	sqlitetest.SeedProgram(t, db, "p1", "2026-03-01", "2026-03-31")
	sqlitetest.SeedProgram(t, db, "p2", "2026-03-01", "2026-03-31")
	store := sessionmeta.NewSQLiteStore(db)

	for _, k := range []session.Key{testKey(9), testKey(2), {ProgramID: "p2", Date: session.NewDate(2026, 3, 3)}} {
		o := session.NewOverride(k)
		if err := o.Complete("done"); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if _, err := store.Save(ctx, o); err != nil {
			t.Fatalf("Save(%s): %v", k, err)
		}
	}

	list, err := store.ListByProgram(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByProgram: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Key.Date.String() != "2026-03-02" || list[1].Key.Date.String() != "2026-03-09" {
		t.Errorf("order = %s, %s", list[0].Key.Date, list[1].Key.Date)
	}
	if !list[0].Completed || list[0].CompletedReason != "done" {
		t.Errorf("list[0] = %+v", list[0])
	}
}

// TestSQLiteStore_SaveUpdateConflictSQL tests the update statement shape and
// the zero-rows conflict path without a real database.
func TestSQLiteStore_SaveUpdateConflictSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE session_meta SET .* WHERE program_id = \? AND session_date = \? AND version = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	o := session.NewOverride(testKey(6))
	o.Version = 3
	_, err = sessionmeta.NewSQLiteStore(db).Save(context.Background(), o)
	if !errors.Is(err, session.ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestSQLiteStore_SaveDriverError tests that driver errors pass through unchanged.
func TestSQLiteStore_SaveDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectExec(`INSERT INTO session_meta`).WillReturnError(boom)

	_, err = sessionmeta.NewSQLiteStore(db).Save(context.Background(), session.NewOverride(testKey(7)))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
