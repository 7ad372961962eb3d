package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/repository"
)

type eventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) repository.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.ProcessEvent) error {
	query := `
		INSERT INTO process_event (process_id, generation, kind, pid, exit_code, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		event.ProcessID,
		event.Generation,
		string(event.Kind),
		event.PID,
		event.ExitCode,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create process event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	return nil
}

func (r *eventRepository) ListByProcess(ctx context.Context, processID string, filter repository.EventFilter) ([]*domain.ProcessEvent, error) {
	query := `
		SELECT id, process_id, generation, kind, pid, exit_code, detail, created_at
		FROM process_event
		WHERE process_id = ?
	`
	args := []interface{}{processID}

	if filter.Kind != nil {
		query += " AND kind = ?"
		args = append(args, string(*filter.Kind))
	}
	if filter.Generation != nil {
		query += " AND generation = ?"
		args = append(args, *filter.Generation)
	}

	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list process events: %w", err)
	}
	defer rows.Close()

	var events []*domain.ProcessEvent
	for rows.Next() {
		var event domain.ProcessEvent
		var kind string
		var pid, exitCode sql.NullInt64
		var detail sql.NullString
		err := rows.Scan(
			&event.ID,
			&event.ProcessID,
			&event.Generation,
			&kind,
			&pid,
			&exitCode,
			&detail,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process event: %w", err)
		}

		event.Kind = domain.EventKind(kind)
		if pid.Valid {
			p := int(pid.Int64)
			event.PID = &p
		}
		if exitCode.Valid {
			c := int(exitCode.Int64)
			event.ExitCode = &c
		}
		if detail.Valid {
			event.Detail = &detail.String
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating process events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) DeleteByProcess(ctx context.Context, processID string) error {
	query := `DELETE FROM process_event WHERE process_id = ?`
	if _, err := r.db.ExecContext(ctx, query, processID); err != nil {
		return fmt.Errorf("failed to delete process events: %w", err)
	}
	return nil
}
