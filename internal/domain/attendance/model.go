package attendance

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
	"time"

	"programdesk/internal/domain/session"
)

// Attendance status constants
const (
	StatusNotRecorded = "not_recorded"
	StatusPresent     = "present"
	StatusAbsent      = "absent"
)

// MaxRemarksLength bounds free-text remarks.
const MaxRemarksLength = 500

// Domain errors
var (
	ErrInvalidStatus  = errors.New("attendance status must be 'present' or 'absent'")
	ErrEmptyTraineeID = errors.New("attendance must be associated with a trainee")
	ErrRemarksTooLong = errors.New("remarks cannot exceed 500 characters")
	ErrNotEnrolled    = errors.New("trainee is not enrolled in the program")
)

// Record is one trainee's mark for one session day.
// At most one Record exists per (Key, TraineeID).
type Record struct {
	ID         string      `json:"id"`
	Key        session.Key `json:"key"`
	TraineeID  string      `json:"trainee_id"`
	Status     string      `json:"status"`
	Remarks    string      `json:"remarks,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
	RecordedBy string      `json:"recorded_by,omitempty"`
}

// Validate checks if the Record has valid data.
// PRE: Record struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: only present and absent may be written
func (r *Record) Validate() error {
	if strings.TrimSpace(r.TraineeID) == "" {
		return ErrEmptyTraineeID
	}
	if r.Status != StatusPresent && r.Status != StatusAbsent {
		return fmt.Errorf("%w: got %q", ErrInvalidStatus, r.Status)
	}
	if len(r.Remarks) > MaxRemarksLength {
		return ErrRemarksTooLong
	}
	return nil
}

// Seq yields records lazily. The sequence is finite and can be ranged over repeatedly.
func Seq(records []Record) iter.Seq[Record] {
	return slices.Values(records)
}

// DaySummary is the derived attendance tally for one session day.
type DaySummary struct {
	Enrolled    int     `json:"enrolled"`
	Present     int     `json:"present"`
	Absent      int     `json:"absent"`
	Recorded    int     `json:"recorded"`
	FillRatio   float64 `json:"fill_ratio"`
	FillPercent int     `json:"fill_percent"`
}

// Summarize counts marks and computes the fill ratio against the enrolled count.
// Unrecorded trainees count toward the denominator.
// PRE: enrolled >= 0
// POST: FillRatio is 0 when nobody is enrolled
func Summarize(records iter.Seq[Record], enrolled int) DaySummary {
	s := DaySummary{Enrolled: enrolled}
	for r := range records {
		switch r.Status {
		case StatusPresent:
			s.Present++
		case StatusAbsent:
			s.Absent++
		}
	}
	s.Recorded = s.Present + s.Absent
	if enrolled > 0 {
		s.FillRatio = float64(s.Recorded) / float64(enrolled)
		s.FillPercent = int(math.Round(s.FillRatio * 100))
	}
	return s
}

// StatusFor returns the status of traineeID within records, or StatusNotRecorded.
func StatusFor(records iter.Seq[Record], traineeID string) string {
	for r := range records {
		if r.TraineeID == traineeID {
			return r.Status
		}
	}
	return StatusNotRecorded
}
