package enrollment

import (
	"context"
	"time"
)

// Store exposes the program roster. Enrollment itself is managed elsewhere;
// the engine reads it for summary denominators and write checks.
type Store interface {
	Enroll(ctx context.Context, programID, traineeID string, at time.Time) error
	ListTraineeIDs(ctx context.Context, programID string) ([]string, error)
	IsEnrolled(ctx context.Context, programID, traineeID string) (bool, error)
}
