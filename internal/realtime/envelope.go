// Package realtime implements the live event distribution layer: the typed
// event envelopes shared by every transport, the connection registry that
// tracks reachable users, and the per-connection WebSocket session.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// EnvelopeType identifies the variant of a server-to-client event envelope.
// The values are part of the wire contract.
type EnvelopeType string

// Envelope type discriminators.
const (
	TypeChatMessage       EnvelopeType = "chat_message"
	TypeTypingIndicator   EnvelopeType = "typing_indicator"
	TypeUserStatus        EnvelopeType = "user_status"
	TypeTaskUpdated       EnvelopeType = "task_updated"
	TypeTaskShared        EnvelopeType = "task_shared"
	TypeTaskMemberRemoved EnvelopeType = "task_member_removed"
	TypeMessageDelivered  EnvelopeType = "message_delivered"
	TypeError             EnvelopeType = "error"
)

// ChatMessagePayload carries a stored chat message to both conversation ends.
type ChatMessagePayload struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	ImageURL   *string   `json:"image_url,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

// TypingIndicatorPayload tells a user that their conversation partner
// started or stopped typing.
type TypingIndicatorPayload struct {
	UserID           uuid.UUID `json:"user_id"`
	IsTyping         bool      `json:"is_typing"`
	ConversationWith uuid.UUID `json:"conversation_with"`
}

// UserStatusPayload announces a presence change to all connected users.
type UserStatusPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

// TaskUpdatedPayload describes a single-field task mutation.
type TaskUpdatedPayload struct {
	TaskID    uuid.UUID `json:"task_id"`
	UpdatedBy uuid.UUID `json:"updated_by"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value"`
}

// TaskSharedPayload tells a user a task was shared with them.
type TaskSharedPayload struct {
	TaskID           uuid.UUID `json:"task_id"`
	TaskTitle        string    `json:"task_title"`
	SharedBy         uuid.UUID `json:"shared_by"`
	SharedByUsername string    `json:"shared_by_username"`
}

// TaskMemberRemovedPayload tells a user they were removed from a shared task.
type TaskMemberRemovedPayload struct {
	TaskID    uuid.UUID `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	RemovedBy uuid.UUID `json:"removed_by"`
}

// MessageDeliveredPayload acknowledges that a chat message reached its
// receiver.
type MessageDeliveredPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

// ErrorPayload reports a per-session error back to the client that caused it.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Envelope is an immutable tagged-union event payload. It serializes to an
// internally tagged JSON object: the variant's fields at the top level plus a
// "type" discriminator. The same encoding is used on every transport.
type Envelope struct {
	typ     EnvelopeType
	payload any
}

// Type returns the envelope's variant discriminator.
func (e Envelope) Type() EnvelopeType {
	return e.typ
}

// Payload returns the envelope's variant payload. The concrete type matches
// the discriminator, e.g. ChatMessagePayload for TypeChatMessage.
func (e Envelope) Payload() any {
	return e.payload
}

// MarshalJSON implements json.Marshaler by flattening the payload fields and
// injecting the "type" discriminator.
func (e Envelope) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.typ, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten %s payload: %w", e.typ, err)
	}

	typeTag, err := json.Marshal(e.typ)
	if err != nil {
		return nil, err
	}
	fields["type"] = typeTag

	return json.Marshal(fields)
}

// UnmarshalJSON implements json.Unmarshaler, decoding the "type"
// discriminator and then the matching payload variant.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type EnvelopeType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to decode envelope type: %w", err)
	}

	decode := func(v any) error {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", probe.Type, err)
		}
		return nil
	}

	switch probe.Type {
	case TypeChatMessage:
		var p ChatMessagePayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeTypingIndicator:
		var p TypingIndicatorPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeUserStatus:
		var p UserStatusPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeTaskUpdated:
		var p TaskUpdatedPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeTaskShared:
		var p TaskSharedPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeTaskMemberRemoved:
		var p TaskMemberRemovedPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeMessageDelivered:
		var p MessageDeliveredPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	case TypeError:
		var p ErrorPayload
		if err := decode(&p); err != nil {
			return err
		}
		*e = Envelope{typ: probe.Type, payload: p}
	default:
		return fmt.Errorf("unknown envelope type %q", probe.Type)
	}

	return nil
}

// NewChatMessage builds a chat_message envelope from a stored message.
func NewChatMessage(msg *domain.Message) Envelope {
	return Envelope{
		typ: TypeChatMessage,
		payload: ChatMessagePayload{
			ID:         msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Content:    msg.Content,
			ImageURL:   msg.ImageURL,
			CreatedAt:  msg.CreatedAt.Format(time.RFC3339),
		},
	}
}

// NewTypingIndicator builds a typing_indicator envelope from userID to their
// conversation partner.
func NewTypingIndicator(userID uuid.UUID, isTyping bool, conversationWith uuid.UUID) Envelope {
	return Envelope{
		typ: TypeTypingIndicator,
		payload: TypingIndicatorPayload{
			UserID:           userID,
			IsTyping:         isTyping,
			ConversationWith: conversationWith,
		},
	}
}

// NewUserStatus builds a user_status presence envelope.
func NewUserStatus(userID uuid.UUID, isOnline bool) Envelope {
	return Envelope{
		typ:     TypeUserStatus,
		payload: UserStatusPayload{UserID: userID, IsOnline: isOnline},
	}
}

// NewTaskUpdated builds a task_updated envelope for a single-field mutation.
func NewTaskUpdated(taskID, updatedBy uuid.UUID, field string, oldValue *string, newValue string) Envelope {
	return Envelope{
		typ: TypeTaskUpdated,
		payload: TaskUpdatedPayload{
			TaskID:    taskID,
			UpdatedBy: updatedBy,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
		},
	}
}

// NewTaskShared builds a task_shared envelope.
func NewTaskShared(taskID uuid.UUID, taskTitle string, sharedBy uuid.UUID, sharedByUsername string) Envelope {
	return Envelope{
		typ: TypeTaskShared,
		payload: TaskSharedPayload{
			TaskID:           taskID,
			TaskTitle:        taskTitle,
			SharedBy:         sharedBy,
			SharedByUsername: sharedByUsername,
		},
	}
}

// NewTaskMemberRemoved builds a task_member_removed envelope.
func NewTaskMemberRemoved(taskID uuid.UUID, taskTitle string, removedBy uuid.UUID) Envelope {
	return Envelope{
		typ: TypeTaskMemberRemoved,
		payload: TaskMemberRemovedPayload{
			TaskID:    taskID,
			TaskTitle: taskTitle,
			RemovedBy: removedBy,
		},
	}
}

// NewMessageDelivered builds a message_delivered envelope.
func NewMessageDelivered(messageID uuid.UUID) Envelope {
	return Envelope{
		typ:     TypeMessageDelivered,
		payload: MessageDeliveredPayload{MessageID: messageID},
	}
}

// NewErrorEnvelope builds an error envelope with the given message.
func NewErrorEnvelope(message string) Envelope {
	return Envelope{
		typ:     TypeError,
		payload: ErrorPayload{Message: message},
	}
}
