package session

import "errors"

// Domain errors. Every failure is a deterministic validation result; callers
// must change their input rather than retry.
var (
	ErrInvalidRange           = errors.New("start date must be on or before end date")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidTransition      = errors.New("invalid session state transition")
	ErrSessionLocked          = errors.New("session is cancelled or completed")
	ErrOutsideRecordingWindow = errors.New("outside the attendance recording window")
	ErrReasonRequired         = errors.New("a reason is required")
	ErrInvalidTime            = errors.New("time must be HH:MM")
	ErrInvalidTimeWindow      = errors.New("end time must be after start time")
	ErrDateOutOfRange         = errors.New("date is outside the program's range")
	ErrVersionConflict        = errors.New("session was modified concurrently")
)
