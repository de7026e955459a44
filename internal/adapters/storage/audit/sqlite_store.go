package audit

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"programdesk/internal/adapters/storage"
	domain "programdesk/internal/domain/audit"
)

// dateLayout is fixed width so stored timestamps sort lexically.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

var eventColumns = []string{
	"id", "timestamp", "category", "action", "actor_id", "actor_role", "program_id", "resource_id", "description",
}

// SQLiteStore implements the audit Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists an audit event.
// PRE: event has an ID
// POST: Event is persisted
func (s *SQLiteStore) Save(ctx context.Context, event domain.Event) error {
	query, args, err := sq.Insert("audit_event").Columns(eventColumns...).
		Values(event.ID, event.Timestamp.UTC().Format(dateLayout), string(event.Category), string(event.Action),
			event.ActorID, event.ActorRole, event.ProgramID, event.ResourceID, event.Description).
		ToSql()
	if err != nil {
		return fmt.Errorf("building audit insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// List returns audit events with optional filtering.
// PRE: limit > 0
// POST: Returns events ordered by timestamp desc
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	b := sq.Select(eventColumns...).From("audit_event").
		OrderBy("timestamp DESC").
		Limit(uint64(limit))

	eq := sq.Eq{}
	if filter.ProgramID != "" {
		eq["program_id"] = filter.ProgramID
	}
	if filter.Category != "" {
		eq["category"] = string(filter.Category)
	}
	if filter.Action != "" {
		eq["action"] = string(filter.Action)
	}
	if filter.ActorID != "" {
		eq["actor_id"] = filter.ActorID
	}
	if filter.ResourceID != "" {
		eq["resource_id"] = filter.ResourceID
	}
	if len(eq) > 0 {
		b = b.Where(eq)
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"timestamp": filter.From.UTC().Format(dateLayout)})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.LtOrEq{"timestamp": filter.To.UTC().Format(dateLayout)})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var timestamp string
		if err := rows.Scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.ActorID, &e.ActorRole,
			&e.ProgramID, &e.ResourceID, &e.Description); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(dateLayout, timestamp)
		events = append(events, e)
	}
	return events, rows.Err()
}
