package store

import (
	"context"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// NotificationStore defines the interface for notification persistence.
type NotificationStore interface {
	// Create saves a new notification to the store.
	// Returns validation errors from the domain Notification if data is invalid.
	Create(ctx context.Context, n *domain.Notification) error
}
