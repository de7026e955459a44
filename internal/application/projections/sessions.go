package projections

import (
	"context"
	"fmt"
	"time"

	auditstore "programdesk/internal/adapters/storage/audit"
	"programdesk/internal/domain/attendance"
	"programdesk/internal/domain/audit"
	"programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

// SessionProgramStore defines the program lookup needed by session projections.
type SessionProgramStore interface {
	GetByID(ctx context.Context, id string) (program.Program, error)
}

// SessionMetaLister defines the metadata reads needed by session projections.
type SessionMetaLister interface {
	Get(ctx context.Context, key session.Key) (session.Override, bool, error)
	ListByProgram(ctx context.Context, programID string) ([]session.Override, error)
}

// SessionAttendanceLister defines the attendance reads needed by session projections.
type SessionAttendanceLister interface {
	ListForDay(ctx context.Context, key session.Key) ([]attendance.Record, error)
	ListForProgram(ctx context.Context, programID string) ([]attendance.Record, error)
}

// SessionRosterStore defines the roster read needed by session projections.
type SessionRosterStore interface {
	ListTraineeIDs(ctx context.Context, programID string) ([]string, error)
}

// SessionAuditLister defines the audit read used for a day's history.
type SessionAuditLister interface {
	List(ctx context.Context, filter auditstore.Filter, limit int) ([]audit.Event, error)
}

// SessionDeps holds dependencies for the session projections.
type SessionDeps struct {
	ProgramStore    SessionProgramStore
	MetaStore       SessionMetaLister
	AttendanceStore SessionAttendanceLister
	RosterStore     SessionRosterStore
	AuditStore      SessionAuditLister // optional
	Policy          session.Policy     // zero value selects session.DefaultPolicy
	Now             func() time.Time
}

func (d SessionDeps) policy() session.Policy {
	if d.Policy == (session.Policy{}) {
		return session.DefaultPolicy()
	}
	return d.Policy
}

// SessionRow is one day in the session list.
type SessionRow struct {
	Meta         session.Meta          `json:"meta"`
	Summary      attendance.DaySummary `json:"summary"`
	CanRecordNow bool                  `json:"can_record_now"`
}

// ListSessionsQuery carries input for the session list projection.
type ListSessionsQuery struct {
	ProgramID string
	From      session.Date // optional lower bound, clamped to the program
	To        session.Date // optional upper bound, clamped to the program
}

// ListSessionsResult carries the output of the session list projection.
type ListSessionsResult struct {
	ProgramID string       `json:"program_id"`
	Name      string       `json:"name"`
	StartDate session.Date `json:"start_date"`
	EndDate   session.Date `json:"end_date"`
	Sessions  []SessionRow `json:"sessions"`
}

// QueryListSessions enumerates the program's days with resolved metadata and tallies.
// PRE: ProgramID names an existing program
// POST: Rows are ascending by date, one per day in the requested span
func QueryListSessions(ctx context.Context, query ListSessionsQuery, deps SessionDeps) (ListSessionsResult, error) {
	p, err := deps.ProgramStore.GetByID(ctx, query.ProgramID)
	if err != nil {
		return ListSessionsResult{}, err
	}
	defaults, err := p.Defaults()
	if err != nil {
		return ListSessionsResult{}, err
	}

	from, to := p.StartDate, p.EndDate
	if !query.From.IsZero() && query.From.After(from) {
		from = query.From
	}
	if !query.To.IsZero() && query.To.Before(to) {
		to = query.To
	}

	overrides, err := deps.MetaStore.ListByProgram(ctx, p.ID)
	if err != nil {
		return ListSessionsResult{}, err
	}
	byKey := make(map[session.Key]session.Override, len(overrides))
	for _, o := range overrides {
		byKey[o.Key] = o
	}

	records, err := deps.AttendanceStore.ListForProgram(ctx, p.ID)
	if err != nil {
		return ListSessionsResult{}, err
	}
	byDay := make(map[session.Key][]attendance.Record)
	for _, r := range records {
		byDay[r.Key] = append(byDay[r.Key], r)
	}

	roster, err := deps.RosterStore.ListTraineeIDs(ctx, p.ID)
	if err != nil {
		return ListSessionsResult{}, err
	}

	result := ListSessionsResult{ProgramID: p.ID, Name: p.Name, StartDate: p.StartDate, EndDate: p.EndDate}
	if from.After(to) {
		return result, nil
	}

	policy := deps.policy()
	now := deps.Now()
	for key := range session.Keys(p.ID, from, to) {
		var override *session.Override
		if o, ok := byKey[key]; ok {
			override = &o
		}
		meta := session.Resolve(key, defaults, override)
		result.Sessions = append(result.Sessions, SessionRow{
			Meta:         meta,
			Summary:      attendance.Summarize(attendance.Seq(byDay[key]), len(roster)),
			CanRecordNow: policy.Check(key, meta, now) == nil,
		})
	}
	return result, nil
}

// RosterEntry is one enrolled trainee's status for a day.
type RosterEntry struct {
	TraineeID string `json:"trainee_id"`
	Status    string `json:"status"`
	Remarks   string `json:"remarks,omitempty"`
}

// DayOverviewQuery carries input for the day overview projection.
type DayOverviewQuery struct {
	ProgramID string
	Date      session.Date
}

// DayOverviewResult carries the output of the day overview projection.
type DayOverviewResult struct {
	Meta         session.Meta          `json:"meta"`
	Summary      attendance.DaySummary `json:"summary"`
	Roster       []RosterEntry         `json:"roster"`
	Records      []attendance.Record   `json:"records"`
	CanRecordNow bool                  `json:"can_record_now"`
	History      []audit.Event         `json:"history,omitempty"`
}

// historyLimit bounds the audit entries shown for a day.
const historyLimit = 50

// QueryGetDayOverview builds the full view of one session day.
// PRE: Date is inside the program
// POST: Roster lists every enrolled trainee, not_recorded where no mark exists
func QueryGetDayOverview(ctx context.Context, query DayOverviewQuery, deps SessionDeps) (DayOverviewResult, error) {
	p, err := deps.ProgramStore.GetByID(ctx, query.ProgramID)
	if err != nil {
		return DayOverviewResult{}, err
	}
	if query.Date.IsZero() || !p.Contains(query.Date) {
		return DayOverviewResult{}, fmt.Errorf("%w: %s not in %s..%s", session.ErrDateOutOfRange, query.Date, p.StartDate, p.EndDate)
	}
	defaults, err := p.Defaults()
	if err != nil {
		return DayOverviewResult{}, err
	}
	key := p.Key(query.Date)

	o, found, err := deps.MetaStore.Get(ctx, key)
	if err != nil {
		return DayOverviewResult{}, err
	}
	var override *session.Override
	if found {
		override = &o
	}
	meta := session.Resolve(key, defaults, override)

	records, err := deps.AttendanceStore.ListForDay(ctx, key)
	if err != nil {
		return DayOverviewResult{}, err
	}
	roster, err := deps.RosterStore.ListTraineeIDs(ctx, p.ID)
	if err != nil {
		return DayOverviewResult{}, err
	}

	seq := attendance.Seq(records)
	remarks := make(map[string]string, len(records))
	for r := range seq {
		remarks[r.TraineeID] = r.Remarks
	}
	result := DayOverviewResult{
		Meta:         meta,
		Summary:      attendance.Summarize(seq, len(roster)),
		Records:      records,
		CanRecordNow: deps.policy().Check(key, meta, deps.Now()) == nil,
	}
	for _, id := range roster {
		result.Roster = append(result.Roster, RosterEntry{
			TraineeID: id,
			Status:    attendance.StatusFor(seq, id),
			Remarks:   remarks[id],
		})
	}

	if deps.AuditStore != nil {
		history, err := deps.AuditStore.List(ctx, auditstore.Filter{ProgramID: p.ID, ResourceID: key.String()}, historyLimit)
		if err != nil {
			return DayOverviewResult{}, err
		}
		result.History = history
	}
	return result, nil
}
