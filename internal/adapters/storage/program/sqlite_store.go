package program

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"programdesk/internal/adapters/storage"
	domain "programdesk/internal/domain/program"
	"programdesk/internal/domain/session"
)

const programColumns = "id, name, start_date, end_date, default_start_time, default_end_time"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new ProgramStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (domain.Program, error) {
	var entity domain.Program
	var startStr, endStr string
	if err := row.Scan(&entity.ID, &entity.Name, &startStr, &endStr, &entity.DefaultStartTime, &entity.DefaultEndTime); err != nil {
		return domain.Program{}, err
	}
	var err error
	if entity.StartDate, err = session.ParseDate(startStr); err != nil {
		return domain.Program{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if entity.EndDate, err = session.ParseDate(endStr); err != nil {
		return domain.Program{}, fmt.Errorf("failed to parse end_date: %w", err)
	}
	return entity, nil
}

// GetByID retrieves a Program by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Program, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+programColumns+" FROM program WHERE id = ?", id)
	entity, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Program{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return entity, err
}

// Save persists a Program to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Program) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO program (`+programColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, start_date=excluded.start_date, end_date=excluded.end_date,
			default_start_time=excluded.default_start_time, default_end_time=excluded.default_end_time`,
		entity.ID, entity.Name, entity.StartDate.String(), entity.EndDate.String(), entity.DefaultStartTime, entity.DefaultEndTime,
	)
	return err
}

// List retrieves all Programs ordered by start date.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Program, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+programColumns+" FROM program ORDER BY start_date, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Program
	for rows.Next() {
		entity, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}
