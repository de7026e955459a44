package capability

import (
	"errors"
	"fmt"
	"slices"
)

// Capability names one guarded engine action.
type Capability string

// Capabilities checked by the session lifecycle orchestrators.
const (
	RecordAttendance      Capability = "record_attendance"
	UpdateSessionMetadata Capability = "update_session_metadata"
	MarkDayCompleted      Capability = "mark_day_completed"
	ReopenCompletedDay    Capability = "reopen_completed_day"
	UpdateProgramEndDate  Capability = "update_program_end_date"
)

// All lists every capability in a stable order.
var All = []Capability{RecordAttendance, UpdateSessionMetadata, MarkDayCompleted, ReopenCompletedDay, UpdateProgramEndDate}

// Role constants
const (
	RoleAdmin   = "admin"
	RoleCoach   = "coach"
	RoleTrainee = "trainee"
)

// Domain errors
var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrEmptyRole         = errors.New("role cannot be empty")
)

// Checker answers whether a role may perform an action.
type Checker interface {
	Allowed(role string, c Capability) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(role string, c Capability) bool

// Allowed implements Checker.
func (f CheckerFunc) Allowed(role string, c Capability) bool { return f(role, c) }

// Matrix maps roles to the capabilities they hold. Unknown roles hold nothing.
type Matrix map[string][]Capability

// DefaultMatrix grants admins everything and coaches day-to-day session work.
func DefaultMatrix() Matrix {
	return Matrix{
		RoleAdmin:   slices.Clone(All),
		RoleCoach:   {RecordAttendance, UpdateSessionMetadata, MarkDayCompleted},
		RoleTrainee: {},
	}
}

// Allowed implements Checker.
// INVARIANT: Matrix is not mutated
func (m Matrix) Allowed(role string, c Capability) bool {
	return slices.Contains(m[role], c)
}

// Validate checks that every role is named and every capability is known.
// PRE: Matrix is populated
// POST: Returns nil if valid, error otherwise
func (m Matrix) Validate() error {
	for role, caps := range m {
		if role == "" {
			return ErrEmptyRole
		}
		for _, c := range caps {
			if !slices.Contains(All, c) {
				return fmt.Errorf("%w: %q for role %q", ErrUnknownCapability, c, role)
			}
		}
	}
	return nil
}
