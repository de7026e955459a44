package enrollment

import (
	"context"
	"time"

	"programdesk/internal/adapters/storage"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new EnrollmentStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Enroll adds a trainee to a program roster. Enrolling twice is a no-op.
// PRE: programID refers to an existing program, traineeID is non-empty
// POST: (programID, traineeID) is on the roster
func (s *SQLiteStore) Enroll(ctx context.Context, programID, traineeID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO enrollment (program_id, trainee_id, enrolled_at) VALUES (?, ?, ?) ON CONFLICT(program_id, trainee_id) DO NOTHING",
		programID, traineeID, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ListTraineeIDs returns the roster ordered by trainee ID.
// PRE: programID is non-empty
// POST: Returns an empty slice for unknown programs
func (s *SQLiteStore) ListTraineeIDs(ctx context.Context, programID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT trainee_id FROM enrollment WHERE program_id = ? ORDER BY trainee_id", programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsEnrolled reports whether the trainee is on the program roster.
func (s *SQLiteStore) IsEnrolled(ctx context.Context, programID, traineeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrollment WHERE program_id = ? AND trainee_id = ?", programID, traineeID,
	).Scan(&n)
	return n > 0, err
}
