package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHandler implements ClientMessageHandler with an injectable function.
type mockHandler struct {
	handleFn func(ctx context.Context, senderID uuid.UUID, msg ClientMessage) error
}

func (m *mockHandler) HandleClientMessage(ctx context.Context, senderID uuid.UUID, msg ClientMessage) error {
	if m.handleFn != nil {
		return m.handleFn(ctx, senderID, msg)
	}
	return nil
}

// sessionFixture runs a real WebSocket server that hands each connection to
// a Session, and dials it with the gorilla client.
type sessionFixture struct {
	registry *Registry
	server   *httptest.Server
	sessions sync.WaitGroup
}

func newSessionFixture(t *testing.T, handler ClientMessageHandler, userID uuid.UUID) *sessionFixture {
	t.Helper()

	f := &sessionFixture{registry: NewRegistry()}
	upgrader := websocket.Upgrader{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		f.sessions.Add(1)
		go func() {
			defer f.sessions.Done()
			NewSession(f.registry, handler, conn, userID, 16).Run(r.Context())
		}()
	}))
	t.Cleanup(func() {
		f.server.Close()
		f.sessions.Wait()
	})
	return f
}

func (f *sessionFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEnvelope reads one frame with a deadline and decodes it.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func waitOnline(t *testing.T, r *Registry, userID uuid.UUID, want bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		return r.IsOnline(userID) == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSession_DispatchesClientMessages(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	receiverID := uuid.New()
	received := make(chan ClientMessage, 1)
	handler := &mockHandler{
		handleFn: func(_ context.Context, senderID uuid.UUID, msg ClientMessage) error {
			assert.Equal(t, userID, senderID)
			received <- msg
			return nil
		},
	}

	f := newSessionFixture(t, handler, userID)
	conn := f.dial(t)
	waitOnline(t, f.registry, userID, true)

	payload := `{"type":"send_message","receiver_id":"` + receiverID.String() + `","content":"hello"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	select {
	case msg := <-received:
		req, ok := msg.(SendMessageRequest)
		require.True(t, ok, "expected SendMessageRequest, got %T", msg)
		assert.Equal(t, receiverID, req.ReceiverID)
		assert.Equal(t, "hello", req.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received the message")
	}
}

func TestSession_MalformedFrameGetsErrorEnvelope(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newSessionFixture(t, &mockHandler{}, userID)
	conn := f.dial(t)
	waitOnline(t, f.registry, userID, true)

	// First frame is the online broadcast for ourselves.
	env := readEnvelope(t, conn)
	require.Equal(t, TypeUserStatus, env.Type())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	env = readEnvelope(t, conn)
	assert.Equal(t, TypeError, env.Type())

	// The session survives the bad frame.
	assert.True(t, f.registry.IsOnline(userID))
}

func TestSession_HandlerErrorReportedNotFatal(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	handler := &mockHandler{
		handleFn: func(context.Context, uuid.UUID, ClientMessage) error {
			return assert.AnError
		},
	}
	f := newSessionFixture(t, handler, userID)
	conn := f.dial(t)
	waitOnline(t, f.registry, userID, true)

	env := readEnvelope(t, conn)
	require.Equal(t, TypeUserStatus, env.Type())

	payload := `{"type":"typing_indicator","conversation_with":"` + uuid.NewString() + `","is_typing":true}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	env = readEnvelope(t, conn)
	assert.Equal(t, TypeError, env.Type())
	assert.True(t, f.registry.IsOnline(userID))
}

func TestSession_DeliversRegistryPushes(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newSessionFixture(t, &mockHandler{}, userID)
	conn := f.dial(t)
	waitOnline(t, f.registry, userID, true)

	env := readEnvelope(t, conn)
	require.Equal(t, TypeUserStatus, env.Type())

	messageID := uuid.New()
	require.True(t, f.registry.SendToUser(userID, NewMessageDelivered(messageID)))

	env = readEnvelope(t, conn)
	require.Equal(t, TypeMessageDelivered, env.Type())
	payload, ok := env.Payload().(MessageDeliveredPayload)
	require.True(t, ok)
	assert.Equal(t, messageID, payload.MessageID)
}

func TestSession_DisconnectReleasesUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newSessionFixture(t, &mockHandler{}, userID)
	conn := f.dial(t)
	waitOnline(t, f.registry, userID, true)

	require.NoError(t, conn.Close())
	waitOnline(t, f.registry, userID, false)
	assert.Equal(t, 0, f.registry.OnlineCount())
}

func TestSession_ConcurrentTeardownBroadcastsOfflineOnce(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	userID := uuid.New()
	observerID := uuid.New()
	observer := make(Sink, 64)
	registry.Register(observerID, observer)

	serverConn := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := NewSession(registry, &mockHandler{}, <-serverConn, userID, 16)
	registry.Register(userID, s.send)

	// Reader and writer can both hit teardown when a connection dies;
	// the user must still go offline exactly once.
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.teardown(log)
		}()
	}
	wg.Wait()

	assert.False(t, registry.IsOnline(userID))

	offline := 0
drain:
	for {
		select {
		case env := <-observer:
			payload, ok := env.Payload().(UserStatusPayload)
			if ok && payload.UserID == userID && !payload.IsOnline {
				offline++
			}
		default:
			break drain
		}
	}
	assert.Equal(t, 1, offline)
}
