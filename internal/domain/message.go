package domain

import (
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Message
var (
	ErrEmptyMessageID      = ErrInvalidID
	ErrEmptyMessageSender  = ErrInvalidID
	ErrEmptyMessageContent = ErrEmptyContent
	ErrSelfAddressed       = ErrValidation
)

// Message represents a direct chat message between two users. The database
// row is the authoritative record; any live push derived from it is a
// best-effort optimization.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	ImageURL   *string   `json:"image_url,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessage creates a new Message from sender to receiver with the given
// content and optional image URL.
// Returns an error if validation fails.
func NewMessage(senderID, receiverID uuid.UUID, content string, imageURL *string) (*Message, error) {
	msg := &Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		ImageURL:   imageURL,
		CreatedAt:  time.Now().UTC(),
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks if the Message has valid data.
// Returns an error if any field fails validation.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMessageID
	}

	if m.SenderID == uuid.Nil || m.ReceiverID == uuid.Nil {
		return ErrEmptyMessageSender
	}

	if m.SenderID == m.ReceiverID {
		return ErrSelfAddressed
	}

	if m.Content == "" {
		return ErrEmptyMessageContent
	}

	return nil
}
