package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "InProgress"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusArchived   TaskStatus = "Archived"
)

// TaskPriority represents how urgent a task is
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
	TaskPriorityUrgent TaskPriority = "Urgent"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID     = ErrInvalidID
	ErrEmptyTaskUserID = ErrInvalidID
	ErrEmptyTaskTitle  = ErrEmptyContent
)

// Task represents a unit of work owned by a single user. A task may carry an
// optional reminder time; the Notified flag records whether the reminder has
// already fired so that a given reminder produces at most one notification.
type Task struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	ReminderTime *time.Time   `json:"reminder_time,omitempty"`
	Notified     bool         `json:"notified"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewTask creates a new Task owned by the given user with the given title.
// The task starts pending with medium priority.
// Returns an error if validation fails.
func NewTask(userID uuid.UUID, title string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Status:    TaskStatusPending,
		Priority:  TaskPriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	switch t.Status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusArchived:
	default:
		return ErrInvalidTaskStatus
	}

	switch t.Priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
	default:
		return ErrInvalidTaskPriority
	}

	return nil
}

// ReminderDue reports whether the task's reminder should fire at the given
// time: a reminder is set, it has passed, and no notification was sent yet.
func (t *Task) ReminderDue(now time.Time) bool {
	return t.ReminderTime != nil && !t.ReminderTime.After(now) && !t.Notified
}
