package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/capability"
	"programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

// ProgramStoreForExtension defines the program store interface needed by ExtendProgramEndDate.
type ProgramStoreForExtension interface {
	GetByID(ctx context.Context, id string) (program.Program, error)
	Save(ctx context.Context, p program.Program) error
}

// ExtendProgramEndDateInput carries input for the extend program end date orchestrator.
type ExtendProgramEndDateInput struct {
	ProgramID  string
	NewEndDate session.Date
	Reason     string
	ActorID    string
	ActorRole  string
}

// ExtendProgramEndDateDeps holds dependencies for ExtendProgramEndDate.
type ExtendProgramEndDateDeps struct {
	Checker      capability.Checker
	ProgramStore ProgramStoreForExtension
	AuditStore   AuditStoreForLifecycle
	Now          func() time.Time
}

// ExtendProgramEndDateResult is the extended program and the days it gained.
type ExtendProgramEndDateResult struct {
	Program   program.Program
	AddedKeys []session.Key
}

// ExecuteExtendProgramEndDate moves a program's end date later.
// PRE: Reason is non-blank; NewEndDate is after the current end date
// POST: Program saved with the new end; existing days and their data are untouched;
// added days carry no metadata and resolve to defaults
func ExecuteExtendProgramEndDate(ctx context.Context, input ExtendProgramEndDateInput, deps ExtendProgramEndDateDeps) (ExtendProgramEndDateResult, error) {
	if err := authorize(deps.Checker, input.ActorRole, capability.UpdateProgramEndDate); err != nil {
		return ExtendProgramEndDateResult{}, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return ExtendProgramEndDateResult{}, fmt.Errorf("%w: end date change", session.ErrReasonRequired)
	}

	p, err := deps.ProgramStore.GetByID(ctx, input.ProgramID)
	if err != nil {
		return ExtendProgramEndDateResult{}, err
	}
	oldEnd := p.EndDate
	added, err := p.ExtendTo(input.NewEndDate)
	if err != nil {
		return ExtendProgramEndDateResult{}, err
	}
	if err := deps.ProgramStore.Save(ctx, p); err != nil {
		return ExtendProgramEndDateResult{}, err
	}

	recordAudit(ctx, deps.AuditStore,
		audit.NewEvent(deps.Now(), input.ActorID, input.ActorRole, audit.CategoryProgram, audit.ActionExtendEndDate).
			WithResource(p.ID, p.ID).
			WithDescription(fmt.Sprintf("end date %s -> %s: %s", oldEnd, p.EndDate, reason)))

	slog.Info("program_event", "event", "end_date_extended", "program_id", p.ID, "old_end", oldEnd.String(), "new_end", p.EndDate.String(), "added_days", len(added), "actor_id", input.ActorID)
	return ExtendProgramEndDateResult{Program: p, AddedKeys: added}, nil
}
