// Package broadcast provides in-process fan-out of typed events to dynamic
// subscriber sets. Each topic is a Broadcaster; subscribers receive events
// over buffered channels and a slow subscriber loses new events rather than
// stalling the publisher or its peers.
package broadcast

import (
	"sync"

	"github.com/phrazzld/taskhub-api/internal/platform/metrics"
)

// Broadcaster fans each published event out to every current subscriber.
// Publish never blocks: a subscriber whose buffer is full simply misses the
// event. All methods are safe for concurrent use.
type Broadcaster[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]chan T
	nextID  uint64
	bufSize int
}

// NewBroadcaster creates a broadcaster whose subscribers each get a buffer
// of bufSize pending events. bufSize must be at least 1.
func NewBroadcaster[T any](bufSize int) *Broadcaster[T] {
	if bufSize < 1 {
		bufSize = 1
	}
	return &Broadcaster[T]{
		subs:    make(map[uint64]chan T),
		bufSize: bufSize,
	}
}

// Publish delivers the event to every subscriber registered at call time,
// returning the number of subscribers whose buffer accepted it.
func (b *Broadcaster[T]) Publish(event T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe registers a new subscriber. The caller must call Close on the
// returned subscription when done; an abandoned subscription accumulates
// missed events forever and leaks its slot.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	ch := make(chan T, b.bufSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	metrics.StreamSubscribers.Inc()
	return &Subscription[T]{broadcaster: b, id: id, ch: ch}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	_, existed := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if existed {
		metrics.StreamSubscribers.Dec()
	}
}

// Subscription is one subscriber's handle on a topic.
type Subscription[T any] struct {
	broadcaster *Broadcaster[T]
	id          uint64
	ch          chan T

	closeOnce sync.Once
}

// Events returns the channel events arrive on. The channel is never closed;
// consumers select against their own cancellation signal.
func (s *Subscription[T]) Events() <-chan T {
	return s.ch
}

// Close removes the subscription from its topic. Events already buffered
// remain readable. Idempotent.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		s.broadcaster.unsubscribe(s.id)
	})
}
