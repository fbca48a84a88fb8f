// Package scheduler runs the periodic reminder scan: tasks whose reminder
// time has arrived produce a notification exactly once and are pushed to
// their owner's live connection when one exists.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/broadcast"
	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/platform/logger"
	"github.com/phrazzld/taskhub-api/internal/platform/metrics"
	"github.com/phrazzld/taskhub-api/internal/realtime"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// Pusher is the slice of the connection registry the scheduler uses. It
// only ever targets single users.
type Pusher interface {
	SendToUser(userID uuid.UUID, env realtime.Envelope) bool
}

// ReminderScheduler scans for due reminders on a fixed interval. Each due
// task is handled independently: a notification row is persisted, the
// notifications topic carries it to any open streams, the owner's live
// connection (if any) gets a push, and the task's notified flag is flipped
// so the reminder never fires again.
//
// The flag is flipped after the notification is created. A crash between
// the two steps can duplicate a notification on restart; the reverse order
// would silently swallow reminders, which is the worse failure.
type ReminderScheduler struct {
	tasks         store.TaskStore
	notifications store.NotificationStore
	topics        *broadcast.Topics
	pusher        Pusher
	interval      time.Duration

	// timeFunc returns the current time. Injectable for testing.
	timeFunc func() time.Time
}

// NewReminderScheduler creates a scheduler with the given scan interval.
func NewReminderScheduler(
	tasks store.TaskStore,
	notifications store.NotificationStore,
	topics *broadcast.Topics,
	pusher Pusher,
	interval time.Duration,
) *ReminderScheduler {
	return &ReminderScheduler{
		tasks:         tasks,
		notifications: notifications,
		topics:        topics,
		pusher:        pusher,
		interval:      interval,
		timeFunc:      func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks until ctx is cancelled. A failed tick is logged and the next
// tick proceeds normally; the scheduler itself never stops on task errors.
func (s *ReminderScheduler) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("reminder scheduler started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one reminder scan. Failures on one task never block the
// rest of the batch.
func (s *ReminderScheduler) Tick(ctx context.Context) {
	log := logger.FromContext(ctx)
	metrics.SchedulerTicks.Inc()

	now := s.timeFunc()
	due, err := s.tasks.ListDueReminders(ctx, now)
	if err != nil {
		metrics.SchedulerFailures.Inc()
		log.Error("reminder scan failed", slog.String("error", err.Error()))
		return
	}

	for _, task := range due {
		if err := s.fireReminder(ctx, task); err != nil {
			metrics.SchedulerFailures.Inc()
			log.Error("reminder failed",
				slog.String("task_id", task.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// fireReminder handles a single due task end to end.
func (s *ReminderScheduler) fireReminder(ctx context.Context, task *domain.Task) error {
	text := fmt.Sprintf("Reminder: %s is due soon!", task.Title)

	notification, err := domain.NewNotification(task.UserID, &task.ID, text)
	if err != nil {
		return fmt.Errorf("failed to build reminder notification: %w", err)
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to persist reminder notification: %w", err)
	}

	// Flip only after the notification exists.
	if err := s.tasks.MarkReminderNotified(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark reminder notified: %w", err)
	}

	s.topics.Notifications.Publish(broadcast.NotificationEvent{
		UserID:  task.UserID,
		Message: text,
	})

	// Live push is best effort; an offline owner reads the stored
	// notification later.
	s.pusher.SendToUser(task.UserID, realtime.NewTaskUpdated(task.ID, task.UserID, "reminder", nil, text))

	return nil
}
