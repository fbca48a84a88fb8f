package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/platform/logger"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// managed by the caller.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// ListDueReminders implements store.TaskStore.ListDueReminders
func (s *PostgresTaskStore) ListDueReminders(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, user_id, title, description, status, priority,
		       due_date, reminder_time, notified, created_at, updated_at
		FROM tasks
		WHERE reminder_time IS NOT NULL
		  AND reminder_time <= $1
		  AND notified = FALSE
		ORDER BY reminder_time
	`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", MapError(err))
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Warn("failed to close rows", "error", cerr)
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(
			&task.ID,
			&task.UserID,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.Priority,
			&task.DueDate,
			&task.ReminderTime,
			&task.Notified,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", MapError(err))
		}
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due reminders: %w", MapError(err))
	}

	return tasks, nil
}

// MarkReminderNotified implements store.TaskStore.MarkReminderNotified
func (s *PostgresTaskStore) MarkReminderNotified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE tasks
		SET notified = TRUE, updated_at = $1
		WHERE id = $2
	`

	// Marking a missing or already-notified task is a no-op, so the
	// affected-rows count is deliberately not checked.
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark reminder notified: %w", MapError(err))
	}

	return nil
}
