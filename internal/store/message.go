package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// MessageStore defines the interface for chat message persistence.
type MessageStore interface {
	// Create saves a new message to the store.
	// Returns validation errors from the domain Message if data is invalid.
	Create(ctx context.Context, msg *domain.Message) error

	// MarkDelivered flags a message as read by its receiver and returns the
	// updated message. The reader must be the message's receiver.
	// Returns ErrMessageNotFound if no such message exists for the reader.
	MarkDelivered(ctx context.Context, messageID, readerID uuid.UUID) (*domain.Message, error)
}
