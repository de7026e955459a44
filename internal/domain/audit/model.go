package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category groups audit events by the record they touch.
type Category string

const (
	CategorySession    Category = "session"
	CategoryAttendance Category = "attendance"
	CategoryProgram    Category = "program"
)

// Action is the engine operation that produced the event.
type Action string

const (
	ActionRecordAttendance Action = "record_attendance"
	ActionAdjustTimes      Action = "adjust_times"
	ActionCancelDay        Action = "cancel_day"
	ActionReactivateDay    Action = "reactivate_day"
	ActionMarkCompleted    Action = "mark_completed"
	ActionReopenDay        Action = "reopen_day"
	ActionExtendEndDate    Action = "extend_end_date"
)

// Event is a single audit log entry.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Category    Category  `json:"category"`
	Action      Action    `json:"action"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	ProgramID   string    `json:"program_id"`
	ResourceID  string    `json:"resource_id"`
	Description string    `json:"description"`
}

// NewEvent creates an audit event stamped with at.
// PRE: action is non-empty
// POST: Returns an Event with a fresh ID
func NewEvent(at time.Time, actorID, actorRole string, category Category, action Action) Event {
	return Event{
		ID:        uuid.New().String(),
		Timestamp: at,
		Category:  category,
		Action:    action,
		ActorID:   actorID,
		ActorRole: actorRole,
	}
}

// WithResource sets the program and the touched resource.
// POST: Event resource fields are populated
func (e Event) WithResource(programID, resourceID string) Event {
	e.ProgramID = programID
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}
