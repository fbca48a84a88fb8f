package service

import (
	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/broadcast"
	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/realtime"
)

// TaskEventPublisher announces task changes to the people who can see the
// task. Every announcement goes two ways: targeted pushes to live
// connections and a TaskEvent on the tasks topic for open streams. Both
// paths are fire and forget.
type TaskEventPublisher struct {
	topics   *broadcast.Topics
	registry Registry
}

// NewTaskEventPublisher creates a TaskEventPublisher.
func NewTaskEventPublisher(topics *broadcast.Topics, registry Registry) *TaskEventPublisher {
	return &TaskEventPublisher{topics: topics, registry: registry}
}

// TaskUpdated announces a field change on a task to all of its members.
// members must include the owner; the actor sees their own change too so
// every open client of theirs converges.
func (p *TaskEventPublisher) TaskUpdated(task *domain.Task, members []uuid.UUID, updatedBy uuid.UUID, field string, oldValue *string, newValue string) {
	p.registry.SendToUsers(members, realtime.NewTaskUpdated(task.ID, updatedBy, field, oldValue, newValue))
	p.topics.Tasks.Publish(broadcast.TaskEvent{UserIDs: members, Task: *task})
}

// TaskShared tells a user they have been added to a task.
func (p *TaskEventPublisher) TaskShared(task *domain.Task, targetUser, sharedBy uuid.UUID, sharedByUsername string) {
	p.registry.SendToUser(targetUser, realtime.NewTaskShared(task.ID, task.Title, sharedBy, sharedByUsername))
	p.topics.Tasks.Publish(broadcast.TaskEvent{UserIDs: []uuid.UUID{targetUser}, Task: *task})
}

// MemberRemoved tells a user they have lost access to a task. This is the
// last event the removed user receives for it.
func (p *TaskEventPublisher) MemberRemoved(task *domain.Task, removedUser, removedBy uuid.UUID) {
	p.registry.SendToUser(removedUser, realtime.NewTaskMemberRemoved(task.ID, task.Title, removedBy))
	p.topics.Tasks.Publish(broadcast.TaskEvent{UserIDs: []uuid.UUID{removedUser}, Task: *task})
}
