package sessionmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"programdesk/internal/adapters/storage"
	"programdesk/internal/domain/session"
)

// metaColumns lists the columns returned by session_meta SELECTs.
var metaColumns = []string{
	"program_id", "session_date", "start_time", "end_time", "status", "completed",
	"cancel_reason", "completed_reason", "version", "updated_at", "updated_by",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new session metadata store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves the override for a session day.
// PRE: key.ProgramID is non-empty
// POST: found is false with a zero override when the day has never been changed
func (s *SQLiteStore) Get(ctx context.Context, key session.Key) (session.Override, bool, error) {
	query, args, err := sq.Select(metaColumns...).From("session_meta").
		Where(sq.Eq{"program_id": key.ProgramID, "session_date": key.Date.String()}).
		ToSql()
	if err != nil {
		return session.Override{}, false, fmt.Errorf("building session_meta query: %w", err)
	}
	o, err := scanOverride(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return session.Override{}, false, nil
	}
	if err != nil {
		return session.Override{}, false, err
	}
	return o, true, nil
}

// Save inserts a first override (Version 0) or updates an existing one whose
// stored version matches.
// PRE: o has passed the domain transition that produced it
// POST: Returns o with Version incremented, or ErrVersionConflict
func (s *SQLiteStore) Save(ctx context.Context, o session.Override) (session.Override, error) {
	updatedAt := o.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	next := o.Version + 1

	var (
		query string
		args  []any
		err   error
	)
	if o.Version == 0 {
		query, args, err = sq.Insert("session_meta").Columns(metaColumns...).
			Values(o.Key.ProgramID, o.Key.Date.String(), o.StartTime, o.EndTime, o.Status, o.Completed,
				o.CancelReason, o.CompletedReason, next, updatedAt.UTC().Format(time.RFC3339Nano), o.UpdatedBy).
			Suffix("ON CONFLICT(program_id, session_date) DO NOTHING").
			ToSql()
	} else {
		query, args, err = sq.Update("session_meta").
			SetMap(map[string]any{
				"start_time":       o.StartTime,
				"end_time":         o.EndTime,
				"status":           o.Status,
				"completed":        o.Completed,
				"cancel_reason":    o.CancelReason,
				"completed_reason": o.CompletedReason,
				"version":          next,
				"updated_at":       updatedAt.UTC().Format(time.RFC3339Nano),
				"updated_by":       o.UpdatedBy,
			}).
			Where(sq.Eq{"program_id": o.Key.ProgramID, "session_date": o.Key.Date.String(), "version": o.Version}).
			ToSql()
	}
	if err != nil {
		return session.Override{}, fmt.Errorf("building session_meta write: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return session.Override{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return session.Override{}, err
	}
	if n == 0 {
		return session.Override{}, fmt.Errorf("%w: %s at version %d", session.ErrVersionConflict, o.Key, o.Version)
	}

	o.Version = next
	o.UpdatedAt = updatedAt
	return o, nil
}

// ListByProgram returns all overrides of a program ordered by date.
func (s *SQLiteStore) ListByProgram(ctx context.Context, programID string) ([]session.Override, error) {
	query, args, err := sq.Select(metaColumns...).From("session_meta").
		Where(sq.Eq{"program_id": programID}).
		OrderBy("session_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session_meta query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []session.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOverride(row scanner) (session.Override, error) {
	var o session.Override
	var dateStr, updatedStr string
	err := row.Scan(&o.Key.ProgramID, &dateStr, &o.StartTime, &o.EndTime, &o.Status, &o.Completed,
		&o.CancelReason, &o.CompletedReason, &o.Version, &updatedStr, &o.UpdatedBy)
	if err != nil {
		return session.Override{}, err
	}
	if o.Key.Date, err = session.ParseDate(dateStr); err != nil {
		return session.Override{}, fmt.Errorf("failed to parse session_date: %w", err)
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return session.Override{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return o, nil
}
