package session

import (
	"fmt"
	"iter"
)

// Key identifies one calendar-day session of a program.
type Key struct {
	ProgramID string `json:"program_id"`
	Date      Date   `json:"date"`
}

// String returns programID/YYYY-MM-DD.
func (k Key) String() string {
	return k.ProgramID + "/" + k.Date.String()
}

// Keys lazily yields one Key per calendar day in [start, end], ascending.
// An empty range (start after end) yields nothing; use DeriveKeys for validation.
func Keys(programID string, start, end Date) iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for d := start; !d.After(end); d = d.AddDays(1) {
			if !yield(Key{ProgramID: programID, Date: d}) {
				return
			}
		}
	}
}

// DeriveKeys returns every session key between start and end inclusive.
// PRE: start and end are set
// POST: len(result) == end - start + 1, ascending, distinct
func DeriveKeys(programID string, start, end Date) ([]Key, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("%w: dates must be set", ErrInvalidRange)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	keys := make([]Key, 0, end.DaysSince(start)+1)
	for k := range Keys(programID, start, end) {
		keys = append(keys, k)
	}
	return keys, nil
}
