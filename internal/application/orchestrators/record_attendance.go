package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"programdesk/internal/domain/attendance"
	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/session"
)

// RecordAttendanceInput carries input for the record attendance orchestrator.
type RecordAttendanceInput struct {
	ProgramID string
	Date      session.Date
	TraineeID string
	Status    string // present or absent
	Remarks   string
	ActorID   string
	ActorRole string
}

// RecordAttendanceDeps holds dependencies for RecordAttendance.
type RecordAttendanceDeps struct {
	Checker         capability.Checker
	ProgramStore    ProgramStoreForLifecycle
	MetaStore       SessionMetaStoreForLifecycle
	AttendanceStore AttendanceStoreForLifecycle
	EnrollmentStore EnrollmentStoreForLifecycle
	AuditStore      AuditStoreForLifecycle
	Policy          session.Policy // zero value selects session.DefaultPolicy
	Now             func() time.Time
}

// ExecuteRecordAttendance marks a trainee present or absent for one session day.
// PRE: ActorRole holds record_attendance; Date is inside the program
// POST: One record per (day, trainee) holds the new status; a second call replaces the first
// INVARIANT: now is read exactly once
func ExecuteRecordAttendance(ctx context.Context, input RecordAttendanceInput, deps RecordAttendanceDeps) (attendance.Record, error) {
	if err := authorize(deps.Checker, input.ActorRole, capability.RecordAttendance); err != nil {
		return attendance.Record{}, err
	}

	p, key, err := loadDay(ctx, deps.ProgramStore, input.ProgramID, input.Date)
	if err != nil {
		return attendance.Record{}, err
	}

	rec := attendance.Record{
		Key:        key,
		TraineeID:  input.TraineeID,
		Status:     input.Status,
		Remarks:    input.Remarks,
		RecordedBy: input.ActorID,
	}
	if err := rec.Validate(); err != nil {
		return attendance.Record{}, err
	}

	defaults, err := p.Defaults()
	if err != nil {
		return attendance.Record{}, err
	}
	o, found, err := deps.MetaStore.Get(ctx, key)
	if err != nil {
		return attendance.Record{}, err
	}
	var override *session.Override
	if found {
		override = &o
	}
	meta := session.Resolve(key, defaults, override)

	policy := deps.Policy
	if policy == (session.Policy{}) {
		policy = session.DefaultPolicy()
	}
	now := deps.Now()
	if err := policy.Check(key, meta, now); err != nil {
		return attendance.Record{}, err
	}

	enrolled, err := deps.EnrollmentStore.IsEnrolled(ctx, key.ProgramID, input.TraineeID)
	if err != nil {
		return attendance.Record{}, err
	}
	if !enrolled {
		return attendance.Record{}, fmt.Errorf("%w: %s in %s", attendance.ErrNotEnrolled, input.TraineeID, key.ProgramID)
	}

	rec.RecordedAt = now
	stored, err := deps.AttendanceStore.Upsert(ctx, rec)
	if err != nil {
		return attendance.Record{}, err
	}

	recordAudit(ctx, deps.AuditStore,
		audit.NewEvent(now, input.ActorID, input.ActorRole, audit.CategoryAttendance, audit.ActionRecordAttendance).
			WithResource(key.ProgramID, key.String()+"/"+stored.TraineeID).
			WithDescription("marked "+stored.Status))

	slog.Info("attendance_event", "event", "attendance_recorded", "key", key.String(), "trainee_id", stored.TraineeID, "status", stored.Status, "actor_id", input.ActorID)
	return stored, nil
}
