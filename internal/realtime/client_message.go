package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformedClientMessage is returned when an inbound client payload cannot
// be decoded. Decode failures are reported back to the offending session only
// and never terminate it.
var ErrMalformedClientMessage = errors.New("malformed client message")

// ClientMessage is implemented by every inbound message variant a connected
// client may send over its session.
type ClientMessage interface {
	clientMessage()
}

// SendMessageRequest asks the server to store a chat message and push it to
// the receiver.
type SendMessageRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	ImageURL   *string   `json:"image_url,omitempty"`
}

func (SendMessageRequest) clientMessage() {}

// TypingIndicatorRequest forwards a typing state change to the conversation
// partner.
type TypingIndicatorRequest struct {
	ConversationWith uuid.UUID `json:"conversation_with"`
	IsTyping         bool      `json:"is_typing"`
}

func (TypingIndicatorRequest) clientMessage() {}

// MarkMessageDeliveredRequest flags a received chat message as delivered.
type MarkMessageDeliveredRequest struct {
	MessageID uuid.UUID `json:"message_id"`
}

func (MarkMessageDeliveredRequest) clientMessage() {}

// DecodeClientMessage decodes an inbound client payload into one of the
// ClientMessage variants. The payload is internally tagged JSON with a "type"
// discriminator of send_message, typing_indicator, or
// mark_message_delivered.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClientMessage, err)
	}

	switch probe.Type {
	case "send_message":
		var req SendMessageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClientMessage, err)
		}
		if req.ReceiverID == uuid.Nil {
			return nil, fmt.Errorf("%w: send_message requires receiver_id", ErrMalformedClientMessage)
		}
		return req, nil

	case "typing_indicator":
		var req TypingIndicatorRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClientMessage, err)
		}
		if req.ConversationWith == uuid.Nil {
			return nil, fmt.Errorf("%w: typing_indicator requires conversation_with", ErrMalformedClientMessage)
		}
		return req, nil

	case "mark_message_delivered":
		var req MarkMessageDeliveredRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClientMessage, err)
		}
		if req.MessageID == uuid.Nil {
			return nil, fmt.Errorf("%w: mark_message_delivered requires message_id", ErrMalformedClientMessage)
		}
		return req, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrMalformedClientMessage, probe.Type)
	}
}
