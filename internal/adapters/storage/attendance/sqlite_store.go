package attendance

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"programdesk/internal/adapters/storage"
	domain "programdesk/internal/domain/attendance"
	"programdesk/internal/domain/session"
)

var recordColumns = []string{
	"id", "program_id", "session_date", "trainee_id", "status", "remarks", "recorded_at", "recorded_by",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new attendance store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert writes the trainee's mark for the session day.
// PRE: rec has been validated
// POST: Exactly one row exists for (key, trainee); returned ID is the stored one
func (s *SQLiteStore) Upsert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	query, args, err := sq.Insert("attendance_record").Columns(recordColumns...).
		Values(rec.ID, rec.Key.ProgramID, rec.Key.Date.String(), rec.TraineeID, rec.Status, rec.Remarks,
			rec.RecordedAt.UTC().Format(time.RFC3339Nano), rec.RecordedBy).
		Suffix(`ON CONFLICT(program_id, session_date, trainee_id) DO UPDATE SET
			status = excluded.status,
			remarks = excluded.remarks,
			recorded_at = excluded.recorded_at,
			recorded_by = excluded.recorded_by
			RETURNING id`).
		ToSql()
	if err != nil {
		return domain.Record{}, fmt.Errorf("building attendance upsert: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID); err != nil {
		return domain.Record{}, fmt.Errorf("upserting attendance for %s/%s: %w", rec.Key, rec.TraineeID, err)
	}
	return rec, nil
}

// ListForDay returns the marks of one session day ordered by trainee.
func (s *SQLiteStore) ListForDay(ctx context.Context, key session.Key) ([]domain.Record, error) {
	return s.list(ctx, sq.Select(recordColumns...).From("attendance_record").
		Where(sq.Eq{"program_id": key.ProgramID, "session_date": key.Date.String()}).
		OrderBy("trainee_id"))
}

// ListForProgram returns every mark of a program ordered by date then trainee.
func (s *SQLiteStore) ListForProgram(ctx context.Context, programID string) ([]domain.Record, error) {
	return s.list(ctx, sq.Select(recordColumns...).From("attendance_record").
		Where(sq.Eq{"program_id": programID}).
		OrderBy("session_date", "trainee_id"))
}

func (s *SQLiteStore) list(ctx context.Context, b sq.SelectBuilder) ([]domain.Record, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building attendance query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Record
	for rows.Next() {
		var r domain.Record
		var dateStr, recordedStr string
		if err := rows.Scan(&r.ID, &r.Key.ProgramID, &dateStr, &r.TraineeID, &r.Status, &r.Remarks,
			&recordedStr, &r.RecordedBy); err != nil {
			return nil, err
		}
		if r.Key.Date, err = session.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("failed to parse session_date: %w", err)
		}
		if r.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedStr); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
