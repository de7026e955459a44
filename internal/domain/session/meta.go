package session

import (
	"fmt"
	"strings"
	"time"
)

// Session status constants
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// State is the lifecycle state derived from status and the completion flag.
type State string

// Lifecycle states
const (
	StateActive    State = "active"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// Defaults carries the program-level values a session inherits.
type Defaults struct {
	StartTime Clock
	EndTime   Clock
}

// Override is the persisted per-day metadata. It exists only once a day has
// been changed from its defaults.
type Override struct {
	Key             Key
	StartTime       string // HH:MM, empty inherits the program default
	EndTime         string // HH:MM, empty inherits the program default
	Status          string
	Completed       bool
	CancelReason    string
	CompletedReason string
	Version         int // optimistic concurrency token, 0 = never stored
	UpdatedAt       time.Time
	UpdatedBy       string
}

// NewOverride returns an active, non-completed override that inherits all times.
func NewOverride(key Key) Override {
	return Override{Key: key, Status: StatusActive}
}

// State returns the lifecycle state of the override.
// INVARIANT: Completed and cancelled are never both set
func (o *Override) State() State {
	switch {
	case o.Status == StatusCancelled:
		return StateCancelled
	case o.Completed:
		return StateCompleted
	default:
		return StateActive
	}
}

// SetTimes overrides the session time window.
// PRE: start and end are HH:MM
// POST: StartTime/EndTime set, or error if the day is locked or times are invalid
func (o *Override) SetTimes(start, end string) error {
	if o.State() != StateActive {
		return fmt.Errorf("%w: cannot change times of a %s day", ErrSessionLocked, o.State())
	}
	s, err := ParseClock(start)
	if err != nil {
		return err
	}
	e, err := ParseClock(end)
	if err != nil {
		return err
	}
	if e <= s {
		return fmt.Errorf("%w: %w: %s-%s", ErrInvalidTime, ErrInvalidTimeWindow, start, end)
	}
	o.StartTime = s.String()
	o.EndTime = e.String()
	return nil
}

// Cancel marks the day cancelled. Cancelling an already cancelled day replaces the reason.
// PRE: reason is non-blank
// POST: Status is cancelled; attendance already recorded is untouched
func (o *Override) Cancel(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: cancellation", ErrReasonRequired)
	}
	if o.Completed {
		return fmt.Errorf("%w: reopen a completed day before cancelling it", ErrInvalidTransition)
	}
	o.Status = StatusCancelled
	o.CancelReason = reason
	return nil
}

// Reactivate returns a cancelled day to active.
func (o *Override) Reactivate() error {
	if o.State() != StateCancelled {
		return fmt.Errorf("%w: only cancelled days can be reactivated", ErrInvalidTransition)
	}
	o.Status = StatusActive
	o.CancelReason = ""
	return nil
}

// Complete locks an active day.
// PRE: reason is non-blank
// POST: Completed is true with CompletedReason set
func (o *Override) Complete(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: completion", ErrReasonRequired)
	}
	if o.State() != StateActive {
		return fmt.Errorf("%w: cannot complete a %s day", ErrInvalidTransition, o.State())
	}
	o.Completed = true
	o.CompletedReason = reason
	return nil
}

// Reopen unlocks a completed day.
func (o *Override) Reopen() error {
	if o.State() != StateCompleted {
		return fmt.Errorf("%w: only completed days can be reopened", ErrInvalidTransition)
	}
	o.Completed = false
	o.CompletedReason = ""
	return nil
}

// Meta is the effective metadata of a session after defaults are applied.
type Meta struct {
	Key             Key    `json:"key"`
	Status          string `json:"status"`
	StartTime       Clock  `json:"start_time"`
	EndTime         Clock  `json:"end_time"`
	Completed       bool   `json:"completed"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	CompletedReason string `json:"completed_reason,omitempty"`
	TimesOverridden bool   `json:"times_overridden"`
	Version         int    `json:"version"`
}

// State returns the lifecycle state of the effective metadata.
func (m Meta) State() State {
	switch {
	case m.Status == StatusCancelled:
		return StateCancelled
	case m.Completed:
		return StateCompleted
	default:
		return StateActive
	}
}

// Locked reports whether the day blocks attendance and time changes.
func (m Meta) Locked() bool {
	return m.State() != StateActive
}

// Resolve merges an optional override over program defaults. It never fails:
// a nil override yields an active, non-completed day with default times.
func Resolve(key Key, defaults Defaults, o *Override) Meta {
	m := Meta{
		Key:       key,
		Status:    StatusActive,
		StartTime: defaults.StartTime,
		EndTime:   defaults.EndTime,
	}
	if o == nil {
		return m
	}
	if o.Status == StatusCancelled {
		m.Status = StatusCancelled
	}
	m.Completed = o.Completed
	m.CancelReason = o.CancelReason
	m.CompletedReason = o.CompletedReason
	m.Version = o.Version
	if c, err := ParseClock(o.StartTime); err == nil {
		m.StartTime = c
		m.TimesOverridden = true
	}
	if c, err := ParseClock(o.EndTime); err == nil {
		m.EndTime = c
		m.TimesOverridden = true
	}
	return m
}
