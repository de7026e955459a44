package enrollment_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"programdesk/internal/adapters/storage/enrollment"
	"programdesk/internal/adapters/storage/sqlitetest"
)

// TestSQLiteStore_Roster tests enrolling, listing and membership checks.
func TestSQLiteStore_Roster(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	sqlitetest.SeedProgram(t, db, "p1", "2026-03-01", "2026-03-31")
	store := enrollment.NewSQLiteStore(db)
	now := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{"t3", "t1", "t2", "t1"} {
		if err := store.Enroll(ctx, "p1", id, now); err != nil {
			t.Fatalf("Enroll(%s): %v", id, err)
		}
	}

	ids, err := store.ListTraineeIDs(ctx, "p1")
	if err != nil {
		t.Fatalf("ListTraineeIDs: %v", err)
	}
	if !slices.Equal(ids, []string{"t1", "t2", "t3"}) {
		t.Errorf("ids = %v, want [t1 t2 t3]", ids)
	}

	ok, err := store.IsEnrolled(ctx, "p1", "t2")
	if err != nil || !ok {
		t.Errorf("IsEnrolled(t2) = %v, %v; want true", ok, err)
	}
	ok, _ = store.IsEnrolled(ctx, "p1", "t9")
	if ok {
		t.Error("IsEnrolled(t9) = true, want false")
	}

	empty, err := store.ListTraineeIDs(ctx, "other")
	if err != nil || len(empty) != 0 {
		t.Errorf("ListTraineeIDs(other) = %v, %v", empty, err)
	}
}

// TestSQLiteStore_EnrollUnknownProgram tests that the roster references real programs.
func TestSQLiteStore_EnrollUnknownProgram(t *testing.T) {
	store := enrollment.NewSQLiteStore(sqlitetest.Open(t))
	if err := store.Enroll(context.Background(), "ghost", "t1", time.Now()); err == nil {
		t.Error("expected foreign key failure for unknown program")
	}
}
