// Package service holds the application services that sit between the
// transport layer and the stores, turning client requests and domain
// changes into persisted rows and live events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/broadcast"
	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/platform/logger"
	"github.com/phrazzld/taskhub-api/internal/realtime"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// Common message service errors.
var (
	// ErrReceiverNotFound is returned when a message targets a user that
	// does not exist.
	ErrReceiverNotFound = errors.New("receiver not found")
)

// Registry is the slice of the connection registry the services use.
type Registry interface {
	SendToUser(userID uuid.UUID, env realtime.Envelope) bool
	SendToUsers(userIDs []uuid.UUID, env realtime.Envelope)
}

// MessageService handles the chat operations arriving over a WebSocket
// session: sending messages, relaying typing indicators, and acknowledging
// delivery. It implements realtime.ClientMessageHandler.
type MessageService struct {
	messages      store.MessageStore
	users         store.UserStore
	notifications store.NotificationStore
	topics        *broadcast.Topics
	registry      Registry
}

// NewMessageService creates a MessageService with its dependencies.
func NewMessageService(
	messages store.MessageStore,
	users store.UserStore,
	notifications store.NotificationStore,
	topics *broadcast.Topics,
	registry Registry,
) *MessageService {
	return &MessageService{
		messages:      messages,
		users:         users,
		notifications: notifications,
		topics:        topics,
		registry:      registry,
	}
}

// HandleClientMessage dispatches a decoded client message to the matching
// operation.
func (s *MessageService) HandleClientMessage(ctx context.Context, senderID uuid.UUID, msg realtime.ClientMessage) error {
	switch m := msg.(type) {
	case realtime.SendMessageRequest:
		return s.Send(ctx, senderID, m)
	case realtime.TypingIndicatorRequest:
		return s.Typing(ctx, senderID, m)
	case realtime.MarkMessageDeliveredRequest:
		return s.MarkDelivered(ctx, senderID, m)
	default:
		return fmt.Errorf("unsupported client message %T", msg)
	}
}

// Send persists a chat message and fans it out: the receiver's live
// connection gets the message, the sender gets an echo confirming the
// stored form, the messages topic carries it to open streams, and a
// notification row plus notification event record it for an offline
// receiver. Persistence is the only step that can fail the operation.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req realtime.SendMessageRequest) error {
	log := logger.FromContext(ctx)

	exists, err := s.users.Exists(ctx, req.ReceiverID)
	if err != nil {
		return fmt.Errorf("failed to verify receiver: %w", err)
	}
	if !exists {
		return ErrReceiverNotFound
	}

	msg, err := domain.NewMessage(senderID, req.ReceiverID, req.Content, req.ImageURL)
	if err != nil {
		return err
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	env := realtime.NewChatMessage(msg)
	s.registry.SendToUser(msg.ReceiverID, env)
	s.registry.SendToUser(msg.SenderID, env)

	s.topics.Messages.Publish(broadcast.MessageEvent{Message: *msg})

	// The notification is an inbox record for the receiver; losing it
	// must not fail a message that is already stored.
	s.recordMessageNotification(ctx, msg, log)

	return nil
}

func (s *MessageService) recordMessageNotification(ctx context.Context, msg *domain.Message, log *slog.Logger) {
	text := "New message: " + msg.Content
	if msg.ImageURL != nil {
		text = "New message with image"
	}
	notification, err := domain.NewNotification(msg.ReceiverID, nil, text)
	if err == nil {
		err = s.notifications.Create(ctx, notification)
	}
	if err != nil {
		log.Warn("failed to record message notification",
			slog.String("message_id", msg.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.topics.Notifications.Publish(broadcast.NotificationEvent{
		UserID:  msg.ReceiverID,
		Message: text,
	})
}

// Typing relays a typing indicator to the conversation partner. Nothing is
// persisted; an offline partner simply misses it.
func (s *MessageService) Typing(_ context.Context, senderID uuid.UUID, req realtime.TypingIndicatorRequest) error {
	s.registry.SendToUser(req.ConversationWith, realtime.NewTypingIndicator(senderID, req.IsTyping, req.ConversationWith))
	return nil
}

// MarkDelivered flags a message as read by its receiver and acknowledges
// the delivery to the original sender's live connection.
func (s *MessageService) MarkDelivered(ctx context.Context, readerID uuid.UUID, req realtime.MarkMessageDeliveredRequest) error {
	msg, err := s.messages.MarkDelivered(ctx, req.MessageID, readerID)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}

	s.registry.SendToUser(msg.SenderID, realtime.NewMessageDelivered(msg.ID))
	return nil
}
