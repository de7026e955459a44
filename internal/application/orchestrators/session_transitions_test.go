package orchestrators

import (
	"context"
	"errors"
	"testing"

	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

// TestExecuteCancelDay_UntouchedDay tests cancelling a day that still uses defaults.
func TestExecuteCancelDay_UntouchedDay(t *testing.T) {
	f := newSessionFixture()
	meta, err := ExecuteCancelDay(context.Background(), dayInput(4, "storm warning"), f.dayDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.State() != session.StateCancelled || meta.CancelReason != "storm warning" {
		t.Errorf("meta = %+v, want cancelled with reason", meta)
	}
	if meta.StartTime.String() != "08:00" || meta.EndTime.String() != "17:00" || meta.TimesOverridden {
		t.Errorf("times = %s-%s overridden=%v, want defaults", meta.StartTime, meta.EndTime, meta.TimesOverridden)
	}
	if meta.Version != 1 {
		t.Errorf("Version = %d, want 1", meta.Version)
	}

	stored := f.metas.rows[session.Key{ProgramID: "p1", Date: day(4)}]
	if stored.UpdatedBy != "coach-1" || !stored.UpdatedAt.Equal(sessionNow) {
		t.Errorf("stored override = %+v", stored)
	}
	if len(f.audits.events) != 1 || f.audits.events[0].Action != audit.ActionCancelDay {
		t.Fatalf("audit events = %+v", f.audits.events)
	}
	if got := f.audits.events[0]; got.ResourceID != "p1/2026-03-04" || got.Description != "cancelled: storm warning" {
		t.Errorf("audit event = %+v", got)
	}
}

// TestExecuteCancelDay_Idempotent tests that cancelling twice replaces the reason.
func TestExecuteCancelDay_Idempotent(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	if _, err := ExecuteCancelDay(ctx, dayInput(4, "storm"), f.dayDeps()); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	meta, err := ExecuteCancelDay(ctx, dayInput(4, "venue flooded"), f.dayDeps())
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if meta.State() != session.StateCancelled || meta.CancelReason != "venue flooded" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Version != 2 {
		t.Errorf("Version = %d, want 2", meta.Version)
	}
}

// TestSessionTransitions_Rejections tests guard failures and that nothing is written.
func TestSessionTransitions_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		run     func(ctx context.Context, deps SessionDayDeps) error
		wantErr error
	}{
		{
			name: "cancel without reason",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				_, err := ExecuteCancelDay(ctx, dayInput(4, "  "), deps)
				return err
			},
			wantErr: session.ErrReasonRequired,
		},
		{
			name: "complete without reason",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				_, err := ExecuteMarkCompleted(ctx, dayInput(4, ""), deps)
				return err
			},
			wantErr: session.ErrReasonRequired,
		},
		{
			name: "reactivate active day",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				_, err := ExecuteReactivateDay(ctx, dayInput(4, ""), deps)
				return err
			},
			wantErr: session.ErrInvalidTransition,
		},
		{
			name: "reopen active day",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				in := dayInput(4, "")
				in.ActorRole = capability.RoleAdmin
				_, err := ExecuteReopenDay(ctx, in, deps)
				return err
			},
			wantErr: session.ErrInvalidTransition,
		},
		{
			name: "date before program",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				in := dayInput(4, "storm")
				in.Date = session.NewDate(2026, 2, 28)
				_, err := ExecuteCancelDay(ctx, in, deps)
				return err
			},
			wantErr: session.ErrDateOutOfRange,
		},
		{
			name: "date after program",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				_, err := ExecuteCancelDay(ctx, dayInput(11, "storm"), deps)
				return err
			},
			wantErr: session.ErrDateOutOfRange,
		},
		{
			name: "unknown program",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				in := dayInput(4, "storm")
				in.ProgramID = "ghost"
				_, err := ExecuteCancelDay(ctx, in, deps)
				return err
			},
			wantErr: program.ErrNotFound,
		},
		{
			name: "invalid time",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				_, err := ExecuteAdjustTimes(ctx, AdjustTimesInput{SessionDayInput: dayInput(4, ""), StartTime: "9am", EndTime: "12:00"}, deps)
				return err
			},
			wantErr: session.ErrInvalidTime,
		},
		{
			name: "end before start",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				_, err := ExecuteAdjustTimes(ctx, AdjustTimesInput{SessionDayInput: dayInput(4, ""), StartTime: "12:00", EndTime: "11:00"}, deps)
				return err
			},
			wantErr: session.ErrInvalidTime,
		},
		{
			name: "stale expected version",
			run: func(ctx context.Context, deps SessionDayDeps) error {
				in := dayInput(4, "storm")
				v := 3
				in.ExpectedVersion = &v
				_, err := ExecuteCancelDay(ctx, in, deps)
				return err
			},
			wantErr: session.ErrVersionConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			err := tt.run(context.Background(), f.dayDeps())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if f.metas.saves != 0 || len(f.audits.events) != 0 {
				t.Errorf("saves = %d, audit events = %d; want none", f.metas.saves, len(f.audits.events))
			}
		})
	}
}

// TestSessionTransitions_PermissionFirst tests that capability checks precede store reads.
func TestSessionTransitions_PermissionFirst(t *testing.T) {
	tests := []struct {
		name string
		role string
		run  func(ctx context.Context, in SessionDayInput, deps SessionDayDeps) error
	}{
		{"trainee cancels", capability.RoleTrainee, func(ctx context.Context, in SessionDayInput, deps SessionDayDeps) error {
			_, err := ExecuteCancelDay(ctx, in, deps)
			return err
		}},
		{"trainee adjusts times", capability.RoleTrainee, func(ctx context.Context, in SessionDayInput, deps SessionDayDeps) error {
			_, err := ExecuteAdjustTimes(ctx, AdjustTimesInput{SessionDayInput: in, StartTime: "09:00", EndTime: "10:00"}, deps)
			return err
		}},
		{"coach reopens", capability.RoleCoach, func(ctx context.Context, in SessionDayInput, deps SessionDayDeps) error {
			_, err := ExecuteReopenDay(ctx, in, deps)
			return err
		}},
		{"unknown role completes", "guest", func(ctx context.Context, in SessionDayInput, deps SessionDayDeps) error {
			_, err := ExecuteMarkCompleted(ctx, in, deps)
			return err
		}},
		// Out-of-range dates still report the permission failure first.
		{"trainee out of range", capability.RoleTrainee, func(ctx context.Context, in SessionDayInput, deps SessionDayDeps) error {
			in.Date = session.NewDate(2030, 1, 1)
			_, err := ExecuteCancelDay(ctx, in, deps)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture()
			in := dayInput(4, "reason")
			in.ActorRole = tt.role
			err := tt.run(context.Background(), in, f.dayDeps())
			if !errors.Is(err, session.ErrPermissionDenied) {
				t.Fatalf("err = %v, want ErrPermissionDenied", err)
			}
			if f.programs.reads != 0 || f.metas.reads != 0 {
				t.Errorf("store reads before permission check: programs=%d metas=%d", f.programs.reads, f.metas.reads)
			}
		})
	}
}

// TestSessionTransitions_StateMachine tests the Active/Cancelled/Completed graph end to end.
func TestSessionTransitions_StateMachine(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	deps := f.dayDeps()
	admin := func(reason string) SessionDayInput {
		in := dayInput(4, reason)
		in.ActorRole = capability.RoleAdmin
		return in
	}

	steps := []struct {
		name      string
		run       func() (session.Meta, error)
		wantState session.State
		wantErr   error
	}{
		{"complete", func() (session.Meta, error) { return ExecuteMarkCompleted(ctx, admin("all marked"), deps) }, session.StateCompleted, nil},
		{"cancel completed", func() (session.Meta, error) { return ExecuteCancelDay(ctx, admin("storm"), deps) }, "", session.ErrInvalidTransition},
		{"adjust completed", func() (session.Meta, error) {
			return ExecuteAdjustTimes(ctx, AdjustTimesInput{SessionDayInput: admin(""), StartTime: "09:00", EndTime: "10:00"}, deps)
		}, "", session.ErrSessionLocked},
		{"reopen", func() (session.Meta, error) { return ExecuteReopenDay(ctx, admin("late mark"), deps) }, session.StateActive, nil},
		{"cancel", func() (session.Meta, error) { return ExecuteCancelDay(ctx, admin("storm"), deps) }, session.StateCancelled, nil},
		{"complete cancelled", func() (session.Meta, error) { return ExecuteMarkCompleted(ctx, admin("done"), deps) }, "", session.ErrInvalidTransition},
		{"adjust cancelled", func() (session.Meta, error) {
			return ExecuteAdjustTimes(ctx, AdjustTimesInput{SessionDayInput: admin(""), StartTime: "09:00", EndTime: "10:00"}, deps)
		}, "", session.ErrSessionLocked},
		{"reactivate", func() (session.Meta, error) { return ExecuteReactivateDay(ctx, admin(""), deps) }, session.StateActive, nil},
		{"adjust active", func() (session.Meta, error) {
			return ExecuteAdjustTimes(ctx, AdjustTimesInput{SessionDayInput: admin(""), StartTime: "09:00", EndTime: "10:00"}, deps)
		}, session.StateActive, nil},
	}
	for _, s := range steps {
		meta, err := s.run()
		if s.wantErr != nil {
			if !errors.Is(err, s.wantErr) {
				t.Fatalf("%s: err = %v, want %v", s.name, err, s.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", s.name, err)
		}
		if meta.State() != s.wantState {
			t.Errorf("%s: state = %s, want %s", s.name, meta.State(), s.wantState)
		}
		if meta.CancelReason != "" && meta.State() != session.StateCancelled {
			t.Errorf("%s: stale cancel reason %q", s.name, meta.CancelReason)
		}
		if meta.CompletedReason != "" && meta.State() != session.StateCompleted {
			t.Errorf("%s: stale completed reason %q", s.name, meta.CompletedReason)
		}
	}

	final := f.metas.rows[session.Key{ProgramID: "p1", Date: day(4)}]
	if final.StartTime != "09:00" || final.EndTime != "10:00" {
		t.Errorf("final times = %s-%s, want 09:00-10:00", final.StartTime, final.EndTime)
	}
	if final.Version != 5 {
		t.Errorf("final version = %d, want 5 successful writes", final.Version)
	}
}

// TestExecuteAdjustTimes_ExpectedVersion tests that a matching version is accepted.
func TestExecuteAdjustTimes_ExpectedVersion(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	zero := 0
	in := AdjustTimesInput{SessionDayInput: dayInput(4, ""), StartTime: "07:30", EndTime: "11:00"}
	in.ExpectedVersion = &zero

	meta, err := ExecuteAdjustTimes(ctx, in, f.dayDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !meta.TimesOverridden || meta.StartTime.String() != "07:30" || meta.Version != 1 {
		t.Errorf("meta = %+v", meta)
	}

	// Replaying the same request is now stale.
	if _, err := ExecuteAdjustTimes(ctx, in, f.dayDeps()); !errors.Is(err, session.ErrVersionConflict) {
		t.Errorf("replay err = %v, want ErrVersionConflict", err)
	}
}

// TestExecuteCancelDay_AuditFailureIgnored tests that an audit write failure does not fail the action.
func TestExecuteCancelDay_AuditFailureIgnored(t *testing.T) {
	f := newSessionFixture()
	f.audits.err = errors.New("audit table locked")
	meta, err := ExecuteCancelDay(context.Background(), dayInput(4, "storm"), f.dayDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.State() != session.StateCancelled || f.metas.saves != 1 {
		t.Errorf("meta = %+v, saves = %d", meta, f.metas.saves)
	}
}

// TestExecuteCancelDay_NilAuditStore tests that auditing is optional.
func TestExecuteCancelDay_NilAuditStore(t *testing.T) {
	f := newSessionFixture()
	deps := f.dayDeps()
	deps.AuditStore = nil
	if _, err := ExecuteCancelDay(context.Background(), dayInput(4, "storm"), deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
