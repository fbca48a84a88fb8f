package realtime

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/taskhub-api/internal/platform/metrics"
)

// shardCount is the number of independently locked registry partitions.
// Sharding keeps one user's traffic from serializing behind an unrelated
// user's register/unregister churn.
const shardCount = 32

// Sink is a session's outbound envelope queue. Many producers enqueue into
// it; exactly one writer loop drains it. Enqueueing is always non-blocking:
// a full sink rejects the envelope instead of stalling the producer.
type Sink chan Envelope

// registryShard holds one partition of the user → sink mapping.
type registryShard struct {
	mu    sync.RWMutex
	sinks map[uuid.UUID]Sink
}

// Registry is the in-memory map of connected users to their outbound sinks.
// It supports targeted unicast, multicast to an explicit set, and broadcast
// to everyone connected, and is safe for arbitrary concurrent use.
//
// The registry exclusively owns the mapping: at most one sink is active per
// user, and a reconnect replaces the previous sink wholesale (last writer
// wins). All delivery through the registry is best effort.
type Registry struct {
	shards [shardCount]*registryShard
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{sinks: make(map[uuid.UUID]Sink)}
	}
	return r
}

// shardFor picks the partition responsible for the given user.
func (r *Registry) shardFor(userID uuid.UUID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return r.shards[h.Sum32()%shardCount]
}

// Register inserts or replaces the sink for the given user. Replacing is
// silent: the evicted sink receives nothing further through the registry,
// and its session discovers the eviction when its transport dies.
func (r *Registry) Register(userID uuid.UUID, sink Sink) {
	s := r.shardFor(userID)
	s.mu.Lock()
	_, replaced := s.sinks[userID]
	s.sinks[userID] = sink
	s.mu.Unlock()

	if !replaced {
		metrics.OnlineConns.Inc()
	}
}

// Unregister removes the user's mapping if present. Idempotent.
func (r *Registry) Unregister(userID uuid.UUID) {
	s := r.shardFor(userID)
	s.mu.Lock()
	_, existed := s.sinks[userID]
	delete(s.sinks, userID)
	s.mu.Unlock()

	if existed {
		metrics.OnlineConns.Dec()
	}
}

// Release removes the mapping only if it still points at the given sink, and
// reports whether it did. Session teardown uses this so that cleanup of a
// replaced session never evicts its successor.
func (r *Registry) Release(userID uuid.UUID, sink Sink) bool {
	s := r.shardFor(userID)
	s.mu.Lock()
	current, ok := s.sinks[userID]
	removed := ok && current == sink
	if removed {
		delete(s.sinks, userID)
	}
	s.mu.Unlock()

	if removed {
		metrics.OnlineConns.Dec()
	}
	return removed
}

// SendToUser enqueues the envelope for the given user. Returns false, never
// an error, when the user has no active sink or the sink's queue is full.
// The caller is never blocked beyond the enqueue attempt.
func (r *Registry) SendToUser(userID uuid.UUID, env Envelope) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	sink, ok := s.sinks[userID]
	s.mu.RUnlock()

	if !ok {
		metrics.PushOffline.Inc()
		return false
	}
	return enqueue(sink, env)
}

// SendToUsers applies SendToUser to each user in the set. Delivery misses
// are not reported; callers of multicast treat delivery as fire and forget.
func (r *Registry) SendToUsers(userIDs []uuid.UUID, env Envelope) {
	for _, id := range userIDs {
		r.SendToUser(id, env)
	}
}

// BroadcastAll enqueues the envelope for every user registered at call time.
// Users registering concurrently may or may not receive it; the snapshot is
// taken per shard, not atomically across the registry.
func (r *Registry) BroadcastAll(env Envelope) {
	for _, s := range r.shards {
		s.mu.RLock()
		sinks := make([]Sink, 0, len(s.sinks))
		for _, sink := range s.sinks {
			sinks = append(sinks, sink)
		}
		s.mu.RUnlock()

		for _, sink := range sinks {
			enqueue(sink, env)
		}
	}
}

// ListOnline returns a point-in-time snapshot of the registered user IDs.
func (r *Registry) ListOnline() []uuid.UUID {
	var online []uuid.UUID
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.sinks {
			online = append(online, id)
		}
		s.mu.RUnlock()
	}
	return online
}

// IsOnline reports whether the user currently has an active sink.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	_, ok := s.sinks[userID]
	s.mu.RUnlock()
	return ok
}

// OnlineCount returns the number of users with an active sink.
func (r *Registry) OnlineCount() int {
	count := 0
	for _, s := range r.shards {
		s.mu.RLock()
		count += len(s.sinks)
		s.mu.RUnlock()
	}
	return count
}

// enqueue attempts a non-blocking send to the sink. A full queue drops the
// envelope rather than back-pressuring the producer.
func enqueue(sink Sink, env Envelope) bool {
	select {
	case sink <- env:
		metrics.PushOK.Inc()
		return true
	default:
		metrics.PushDropped.Inc()
		return false
	}
}
