package attendance

import (
	"context"

	domain "programdesk/internal/domain/attendance"
	"programdesk/internal/domain/session"
)

// Store persists attendance records, at most one per trainee per session day.
type Store interface {
	// Upsert creates or replaces the trainee's mark for the day and returns
	// the stored record. The record ID is kept across replacements.
	Upsert(ctx context.Context, rec domain.Record) (domain.Record, error)
	ListForDay(ctx context.Context, key session.Key) ([]domain.Record, error)
	ListForProgram(ctx context.Context, programID string) ([]domain.Record, error)
}
