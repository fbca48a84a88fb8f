package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SendToUser(t *testing.T) {
	t.Parallel()

	t.Run("delivers to registered user", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		userID := uuid.New()
		sink := make(Sink, 1)
		r.Register(userID, sink)

		env := NewUserStatus(userID, true)
		require.True(t, r.SendToUser(userID, env))

		got := <-sink
		assert.Equal(t, TypeUserStatus, got.Type())
	})

	t.Run("returns false for unregistered user", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		assert.False(t, r.SendToUser(uuid.New(), NewUserStatus(uuid.New(), true)))
	})

	t.Run("returns false when sink is full", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		userID := uuid.New()
		sink := make(Sink, 1)
		r.Register(userID, sink)

		env := NewUserStatus(userID, true)
		require.True(t, r.SendToUser(userID, env))
		assert.False(t, r.SendToUser(userID, env), "full sink should drop, not block")
	})

	t.Run("returns false after unregister", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		userID := uuid.New()
		r.Register(userID, make(Sink, 1))
		r.Unregister(userID)

		assert.False(t, r.SendToUser(userID, NewUserStatus(userID, false)))
	})
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	userID := uuid.New()
	sink1 := make(Sink, 1)
	sink2 := make(Sink, 1)

	r.Register(userID, sink1)
	r.Register(userID, sink2)

	env := NewUserStatus(userID, true)
	require.True(t, r.SendToUser(userID, env))

	select {
	case <-sink1:
		t.Fatal("replaced sink must not receive envelopes")
	default:
	}

	got := <-sink2
	assert.Equal(t, TypeUserStatus, got.Type())
	assert.Equal(t, 1, r.OnlineCount(), "replace must not double-count the user")
}

func TestRegistry_Release(t *testing.T) {
	t.Parallel()

	t.Run("removes own mapping", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		userID := uuid.New()
		sink := make(Sink, 1)
		r.Register(userID, sink)

		assert.True(t, r.Release(userID, sink))
		assert.False(t, r.IsOnline(userID))
	})

	t.Run("does not evict a successor sink", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		userID := uuid.New()
		sink1 := make(Sink, 1)
		sink2 := make(Sink, 1)
		r.Register(userID, sink1)
		r.Register(userID, sink2)

		assert.False(t, r.Release(userID, sink1), "stale sink must not release the live one")
		assert.True(t, r.IsOnline(userID))
		assert.True(t, r.SendToUser(userID, NewUserStatus(userID, true)))
	})

	t.Run("idempotent on missing user", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		assert.False(t, r.Release(uuid.New(), make(Sink, 1)))
	})
}

func TestRegistry_BroadcastAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	const n = 50
	sinks := make(map[uuid.UUID]Sink, n)
	for i := 0; i < n; i++ {
		id := uuid.New()
		sink := make(Sink, 1)
		sinks[id] = sink
		r.Register(id, sink)
	}

	r.BroadcastAll(NewUserStatus(uuid.New(), true))

	for id, sink := range sinks {
		select {
		case <-sink:
		default:
			t.Fatalf("user %s did not receive broadcast", id)
		}
	}
}

func TestRegistry_SendToUsers(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	online := uuid.New()
	offline := uuid.New()
	sink := make(Sink, 1)
	r.Register(online, sink)

	r.SendToUsers([]uuid.UUID{online, offline}, NewUserStatus(online, true))

	select {
	case <-sink:
	default:
		t.Fatal("online member did not receive multicast")
	}
}

func TestRegistry_Snapshots(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		r.Register(id, make(Sink, 1))
	}

	assert.Equal(t, 3, r.OnlineCount())
	assert.ElementsMatch(t, ids, r.ListOnline())
	assert.True(t, r.IsOnline(ids[0]))
	assert.False(t, r.IsOnline(uuid.New()))

	r.Unregister(ids[0])
	assert.Equal(t, 2, r.OnlineCount())
	assert.False(t, r.IsOnline(ids[0]))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	const workers = 16
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				id := uuid.New()
				sink := make(Sink, 1)
				r.Register(id, sink)
				r.SendToUser(id, NewUserStatus(id, true))
				r.IsOnline(id)
				r.BroadcastAll(NewUserStatus(id, false))
				r.Release(id, sink)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.OnlineCount())
}
