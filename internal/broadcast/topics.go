package broadcast

import (
	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/domain"
)

// NotificationEvent is published whenever a user-facing notification is
// created, including reminder notifications produced by the scheduler.
type NotificationEvent struct {
	UserID  uuid.UUID
	Message string
}

// MessageEvent is published for every persisted chat message. Both
// participants of the conversation observe it on the messages topic.
type MessageEvent struct {
	Message domain.Message
}

// TaskEvent is published whenever a task changes in a way its members
// should see. UserIDs lists recipients, the owner plus shared members.
type TaskEvent struct {
	UserIDs []uuid.UUID
	Task    domain.Task
}

// Visible reports whether the event addresses the given user.
func (e TaskEvent) Visible(userID uuid.UUID) bool {
	for _, id := range e.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Topics bundles the three process-wide event topics. One Topics value is
// created at startup and shared by everything that publishes or streams.
type Topics struct {
	Notifications *Broadcaster[NotificationEvent]
	Messages      *Broadcaster[MessageEvent]
	Tasks         *Broadcaster[TaskEvent]
}

// NewTopics creates all topics with the same per-subscriber buffer size.
func NewTopics(bufSize int) *Topics {
	return &Topics{
		Notifications: NewBroadcaster[NotificationEvent](bufSize),
		Messages:      NewBroadcaster[MessageEvent](bufSize),
		Tasks:         NewBroadcaster[TaskEvent](bufSize),
	}
}
