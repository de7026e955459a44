package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"programdesk/internal/domain/attendance"
	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

// ProgramStoreForLifecycle defines the program store interface needed by session orchestrators.
type ProgramStoreForLifecycle interface {
	GetByID(ctx context.Context, id string) (program.Program, error)
}

// SessionMetaStoreForLifecycle defines the session metadata store interface needed by session orchestrators.
type SessionMetaStoreForLifecycle interface {
	Get(ctx context.Context, key session.Key) (session.Override, bool, error)
	Save(ctx context.Context, o session.Override) (session.Override, error)
}

// AttendanceStoreForLifecycle defines the attendance store interface needed by RecordAttendance.
type AttendanceStoreForLifecycle interface {
	Upsert(ctx context.Context, rec attendance.Record) (attendance.Record, error)
}

// EnrollmentStoreForLifecycle defines the roster lookup needed by RecordAttendance.
type EnrollmentStoreForLifecycle interface {
	IsEnrolled(ctx context.Context, programID, traineeID string) (bool, error)
}

// AuditStoreForLifecycle defines the audit sink. A nil store disables auditing.
type AuditStoreForLifecycle interface {
	Save(ctx context.Context, event audit.Event) error
}

// authorize fails with ErrPermissionDenied unless role holds c.
// INVARIANT: called before any store read
func authorize(checker capability.Checker, role string, c capability.Capability) error {
	if checker == nil || !checker.Allowed(role, c) {
		return fmt.Errorf("%w: role %q lacks %s", session.ErrPermissionDenied, role, c)
	}
	return nil
}

// loadDay fetches the program and builds the key for date.
// POST: Returns ErrDateOutOfRange if date is not one of the program's days
func loadDay(ctx context.Context, programs ProgramStoreForLifecycle, programID string, date session.Date) (program.Program, session.Key, error) {
	p, err := programs.GetByID(ctx, programID)
	if err != nil {
		return program.Program{}, session.Key{}, err
	}
	if date.IsZero() || !p.Contains(date) {
		return program.Program{}, session.Key{}, fmt.Errorf("%w: %s not in %s..%s", session.ErrDateOutOfRange, date, p.StartDate, p.EndDate)
	}
	return p, p.Key(date), nil
}

// loadOverride returns the stored override for key, or a fresh one if the day was never changed.
func loadOverride(ctx context.Context, metas SessionMetaStoreForLifecycle, key session.Key) (session.Override, error) {
	o, found, err := metas.Get(ctx, key)
	if err != nil {
		return session.Override{}, err
	}
	if !found {
		return session.NewOverride(key), nil
	}
	return o, nil
}

// recordAudit writes event without failing the caller. The mutation it
// describes has already been committed.
func recordAudit(ctx context.Context, store AuditStoreForLifecycle, event audit.Event) {
	if store == nil {
		return
	}
	if err := store.Save(ctx, event); err != nil {
		slog.Warn("audit_write_failed", "action", string(event.Action), "resource_id", event.ResourceID, "error", err)
	}
}
