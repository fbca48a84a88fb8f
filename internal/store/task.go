package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// TaskStore defines the persistence operations the real-time subsystem needs
// from the task table. Full CRUD lives with the write-path handlers; only the
// reminder scan consumed by the scheduler is modeled here.
type TaskStore interface {
	// ListDueReminders returns all tasks whose reminder time is at or before
	// the given instant and whose notified flag is still unset.
	ListDueReminders(ctx context.Context, now time.Time) ([]*domain.Task, error)

	// MarkReminderNotified sets the notified flag on a task so its reminder
	// is never selected again. The operation is idempotent: marking an
	// already-notified task is a no-op, not an error.
	MarkReminderNotified(ctx context.Context, id uuid.UUID) error
}
