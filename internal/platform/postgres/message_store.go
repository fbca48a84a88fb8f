package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// PostgresMessageStore implements the store.MessageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMessageStore struct {
	db store.DBTX
}

// NewPostgresMessageStore creates a new PostgreSQL implementation of the
// MessageStore interface.
func NewPostgresMessageStore(db store.DBTX) *PostgresMessageStore {
	return &PostgresMessageStore{
		db: db,
	}
}

// Ensure PostgresMessageStore implements store.MessageStore interface
var _ store.MessageStore = (*PostgresMessageStore)(nil)

// Create implements store.MessageStore.Create
func (s *PostgresMessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, image_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.ImageURL,
		msg.IsRead,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", MapError(err))
	}

	return nil
}

// MarkDelivered implements store.MessageStore.MarkDelivered. The reader must
// be the message's receiver; a sender cannot mark their own message read.
func (s *PostgresMessageStore) MarkDelivered(ctx context.Context, messageID, readerID uuid.UUID) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = $1 AND receiver_id = $2
		RETURNING id, sender_id, receiver_id, content, image_url, is_read, created_at
	`

	var msg domain.Message
	err := s.db.QueryRowContext(ctx, query, messageID, readerID).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.ImageURL,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrNotFound) {
			return nil, store.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to mark message delivered: %w", mapped)
	}

	return &msg, nil
}
