package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification represents a persisted notification for a user, optionally
// linked to the task that produced it.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewNotification creates a new unread Notification for the given user.
// taskID may be nil for notifications not tied to a task.
// Returns an error if validation fails.
func NewNotification(userID uuid.UUID, taskID *uuid.UUID, message string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		TaskID:    taskID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	return n, nil
}

// Validate checks if the Notification has valid data.
// Returns an error if any field fails validation.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return ErrInvalidID
	}

	if n.UserID == uuid.Nil {
		return ErrInvalidID
	}

	if n.Message == "" {
		return ErrEmptyContent
	}

	return nil
}
