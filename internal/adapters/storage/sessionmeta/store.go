package sessionmeta

import (
	"context"

	"programdesk/internal/domain/session"
)

// Store persists per-day session overrides. A missing row means the day
// uses program defaults.
type Store interface {
	// Get returns the override for key and whether one exists.
	Get(ctx context.Context, key session.Key) (session.Override, bool, error)

	// Save writes o if the stored version still equals o.Version and returns
	// the override with its new version. A stale version yields
	// session.ErrVersionConflict.
	Save(ctx context.Context, o session.Override) (session.Override, error)

	// ListByProgram returns every override of a program ordered by date.
	ListByProgram(ctx context.Context, programID string) ([]session.Override, error)
}
