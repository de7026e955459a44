package program

import (
	"context"

	domain "programdesk/internal/domain/program"
)

// Store persists programs: their date range and default session times.
// Session days are derived from the range and never stored here.
type Store interface {
	// GetByID returns the program or an error wrapping domain.ErrNotFound.
	GetByID(ctx context.Context, id string) (domain.Program, error)
	// Save inserts or replaces the program row.
	Save(ctx context.Context, p domain.Program) error
	// List returns every program ordered by start date then name.
	List(ctx context.Context) ([]domain.Program, error)
}
