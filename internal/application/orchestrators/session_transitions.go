package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/session"
)

// SessionDayInput carries input for the per-day metadata orchestrators.
type SessionDayInput struct {
	ProgramID string
	Date      session.Date
	Reason    string // required for cancel and complete, recorded in the audit trail otherwise
	ActorID   string
	ActorRole string
	// ExpectedVersion, when set, must match the stored version of the day
	// (0 for a day that was never changed).
	ExpectedVersion *int
}

// SessionDayDeps holds dependencies for the per-day metadata orchestrators.
type SessionDayDeps struct {
	Checker      capability.Checker
	ProgramStore ProgramStoreForLifecycle
	MetaStore    SessionMetaStoreForLifecycle
	AuditStore   AuditStoreForLifecycle
	Now          func() time.Time
}

// AdjustTimesInput carries input for the adjust times orchestrator.
type AdjustTimesInput struct {
	SessionDayInput
	StartTime string // HH:MM
	EndTime   string // HH:MM
}

// transition describes one metadata change applied through applyTransition.
type transition struct {
	capability capability.Capability
	action     audit.Action
	event      string
	apply      func(o *session.Override) error
	describe   func(m session.Meta) string
}

// ExecuteAdjustTimes overrides the start and end time of one session day.
// PRE: StartTime and EndTime are HH:MM with end after start
// POST: Day keeps its status; times overridden; ErrSessionLocked if cancelled or completed
func ExecuteAdjustTimes(ctx context.Context, input AdjustTimesInput, deps SessionDayDeps) (session.Meta, error) {
	return applyTransition(ctx, input.SessionDayInput, deps, transition{
		capability: capability.UpdateSessionMetadata,
		action:     audit.ActionAdjustTimes,
		event:      "times_adjusted",
		apply:      func(o *session.Override) error { return o.SetTimes(input.StartTime, input.EndTime) },
		describe: func(m session.Meta) string {
			return fmt.Sprintf("times set to %s-%s", m.StartTime, m.EndTime)
		},
	})
}

// ExecuteCancelDay cancels one session day.
// PRE: Reason is non-blank
// POST: Day is cancelled; recorded attendance is kept
func ExecuteCancelDay(ctx context.Context, input SessionDayInput, deps SessionDayDeps) (session.Meta, error) {
	return applyTransition(ctx, input, deps, transition{
		capability: capability.UpdateSessionMetadata,
		action:     audit.ActionCancelDay,
		event:      "day_cancelled",
		apply:      func(o *session.Override) error { return o.Cancel(input.Reason) },
		describe:   func(m session.Meta) string { return withReason("cancelled", m.CancelReason) },
	})
}

// ExecuteReactivateDay returns a cancelled day to active.
// POST: Day is active with its cancel reason cleared
func ExecuteReactivateDay(ctx context.Context, input SessionDayInput, deps SessionDayDeps) (session.Meta, error) {
	return applyTransition(ctx, input, deps, transition{
		capability: capability.UpdateSessionMetadata,
		action:     audit.ActionReactivateDay,
		event:      "day_reactivated",
		apply:      func(o *session.Override) error { return o.Reactivate() },
		describe:   func(session.Meta) string { return withReason("reactivated", input.Reason) },
	})
}

// ExecuteMarkCompleted locks an active day as completed.
// PRE: Reason is non-blank
// POST: Day is completed; further attendance and time changes are refused
func ExecuteMarkCompleted(ctx context.Context, input SessionDayInput, deps SessionDayDeps) (session.Meta, error) {
	return applyTransition(ctx, input, deps, transition{
		capability: capability.MarkDayCompleted,
		action:     audit.ActionMarkCompleted,
		event:      "day_completed",
		apply:      func(o *session.Override) error { return o.Complete(input.Reason) },
		describe:   func(m session.Meta) string { return withReason("completed", m.CompletedReason) },
	})
}

// ExecuteReopenDay unlocks a completed day.
// POST: Day is active with its completion reason cleared
func ExecuteReopenDay(ctx context.Context, input SessionDayInput, deps SessionDayDeps) (session.Meta, error) {
	return applyTransition(ctx, input, deps, transition{
		capability: capability.ReopenCompletedDay,
		action:     audit.ActionReopenDay,
		event:      "day_reopened",
		apply:      func(o *session.Override) error { return o.Reopen() },
		describe:   func(session.Meta) string { return withReason("reopened", input.Reason) },
	})
}

// applyTransition runs the shared load, transition, save, audit sequence.
// PRE: t.apply is a pure Override transition
// POST: Exactly one metadata write on success, none on failure
func applyTransition(ctx context.Context, input SessionDayInput, deps SessionDayDeps, t transition) (session.Meta, error) {
	if err := authorize(deps.Checker, input.ActorRole, t.capability); err != nil {
		return session.Meta{}, err
	}

	p, key, err := loadDay(ctx, deps.ProgramStore, input.ProgramID, input.Date)
	if err != nil {
		return session.Meta{}, err
	}
	defaults, err := p.Defaults()
	if err != nil {
		return session.Meta{}, err
	}

	o, err := loadOverride(ctx, deps.MetaStore, key)
	if err != nil {
		return session.Meta{}, err
	}
	if input.ExpectedVersion != nil && *input.ExpectedVersion != o.Version {
		return session.Meta{}, fmt.Errorf("%w: %s is at version %d, expected %d", session.ErrVersionConflict, key, o.Version, *input.ExpectedVersion)
	}

	if err := t.apply(&o); err != nil {
		return session.Meta{}, err
	}

	now := deps.Now()
	o.UpdatedAt = now
	o.UpdatedBy = input.ActorID
	saved, err := deps.MetaStore.Save(ctx, o)
	if err != nil {
		return session.Meta{}, err
	}
	meta := session.Resolve(key, defaults, &saved)

	event := audit.NewEvent(now, input.ActorID, input.ActorRole, audit.CategorySession, t.action).
		WithResource(key.ProgramID, key.String())
	if t.describe != nil {
		event = event.WithDescription(t.describe(meta))
	}
	recordAudit(ctx, deps.AuditStore, event)

	slog.Info("session_event", "event", t.event, "key", key.String(), "state", string(meta.State()), "version", meta.Version, "actor_id", input.ActorID)
	return meta, nil
}

func withReason(what, reason string) string {
	if reason = strings.TrimSpace(reason); reason == "" {
		return what
	}
	return what + ": " + reason
}
