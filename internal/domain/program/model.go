package program

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"programdesk/internal/domain/session"
)

// Domain errors
var (
	ErrNotFound       = errors.New("program not found")
	ErrEmptyName      = errors.New("program name cannot be empty")
	ErrEmptyStartDate = errors.New("start date cannot be zero")
	ErrEmptyEndDate   = errors.New("end date cannot be zero")
	ErrNotExtended    = errors.New("new end date must be after the current end date")
)

// Program is a training program with a fixed daily schedule between two dates.
type Program struct {
	ID               string
	Name             string
	StartDate        session.Date
	EndDate          session.Date
	DefaultStartTime string // HH:MM format
	DefaultEndTime   string // HH:MM format
}

// Validate checks if the Program has valid data.
// PRE: Program struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Program) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.StartDate.IsZero() {
		return ErrEmptyStartDate
	}
	if p.EndDate.IsZero() {
		return ErrEmptyEndDate
	}
	if p.StartDate.After(p.EndDate) {
		return session.ErrInvalidRange
	}
	d, err := p.Defaults()
	if err != nil {
		return err
	}
	if d.EndTime <= d.StartTime {
		return fmt.Errorf("%w: default %s-%s", session.ErrInvalidTimeWindow, p.DefaultStartTime, p.DefaultEndTime)
	}
	return nil
}

// Defaults returns the time window every session inherits unless overridden.
// PRE: DefaultStartTime and DefaultEndTime are HH:MM
// POST: Returns parsed clocks or ErrInvalidTime
func (p *Program) Defaults() (session.Defaults, error) {
	start, err := session.ParseClock(p.DefaultStartTime)
	if err != nil {
		return session.Defaults{}, fmt.Errorf("default start time: %w", err)
	}
	end, err := session.ParseClock(p.DefaultEndTime)
	if err != nil {
		return session.Defaults{}, fmt.Errorf("default end time: %w", err)
	}
	return session.Defaults{StartTime: start, EndTime: end}, nil
}

// Contains returns true if the given date is one of the program's session days.
// INVARIANT: Program fields are not mutated
func (p *Program) Contains(d session.Date) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Key returns the session key for d.
func (p *Program) Key(d session.Date) session.Key {
	return session.Key{ProgramID: p.ID, Date: d}
}

// SessionKeys derives one key per day of the program.
// PRE: StartDate <= EndDate
// POST: Returns EndDate-StartDate+1 ascending keys
func (p *Program) SessionKeys() ([]session.Key, error) {
	return session.DeriveKeys(p.ID, p.StartDate, p.EndDate)
}

// Sessions lazily yields the program's session keys.
func (p *Program) Sessions() iter.Seq[session.Key] {
	return session.Keys(p.ID, p.StartDate, p.EndDate)
}

// ExtendTo moves the end date later and returns the keys of the added days.
// Shrinking is refused because trailing days may already hold attendance.
// PRE: newEnd is after EndDate
// POST: EndDate == newEnd; earlier keys are unchanged
func (p *Program) ExtendTo(newEnd session.Date) ([]session.Key, error) {
	if newEnd.IsZero() {
		return nil, ErrEmptyEndDate
	}
	if !newEnd.After(p.EndDate) {
		return nil, fmt.Errorf("%w: %w (%s -> %s)", session.ErrInvalidRange, ErrNotExtended, p.EndDate, newEnd)
	}
	added, err := session.DeriveKeys(p.ID, p.EndDate.AddDays(1), newEnd)
	if err != nil {
		return nil, err
	}
	p.EndDate = newEnd
	return added, nil
}
