package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/phrazzld/taskhub-api/internal/platform/logger"
)

const (
	// writeWait bounds a single write to the peer, including pings.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// pump declares it dead. Pings go out at pingPeriod, which must be
	// shorter than pongWait so a healthy peer always answers in time.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxInboundBytes caps a single client frame. Chat payloads are small;
	// anything larger is a misbehaving client.
	maxInboundBytes = 64 * 1024
)

// ClientMessageHandler consumes decoded inbound client messages. A handler
// error is reported back to the client as an error envelope; it never tears
// the session down.
type ClientMessageHandler interface {
	HandleClientMessage(ctx context.Context, senderID uuid.UUID, msg ClientMessage) error
}

// Session owns one WebSocket connection for one authenticated user. It runs
// a reader goroutine (inbound frames → handler) and a writer goroutine
// (sink → outbound frames), registers the user's sink for the lifetime of
// the connection, and announces presence transitions to everyone connected.
type Session struct {
	registry *Registry
	handler  ClientMessageHandler
	conn     *websocket.Conn
	userID   uuid.UUID

	send Sink
	done chan struct{}

	closeOnce sync.Once
}

// NewSession wraps an already upgraded connection. sendBuf sizes the
// outbound queue; envelopes beyond it are dropped by the registry.
func NewSession(registry *Registry, handler ClientMessageHandler, conn *websocket.Conn, userID uuid.UUID, sendBuf int) *Session {
	return &Session{
		registry: registry,
		handler:  handler,
		conn:     conn,
		userID:   userID,
		send:     make(Sink, sendBuf),
		done:     make(chan struct{}),
	}
}

// Run registers the session and blocks until the connection dies. It must
// be called at most once. On return the sink is released, the transport is
// closed, and, if this session was still the user's live one, an offline
// status has been broadcast.
func (s *Session) Run(ctx context.Context) {
	log := logger.FromContext(ctx).With(
		slog.String("user_id", s.userID.String()),
	)

	s.registry.Register(s.userID, s.send)
	s.registry.BroadcastAll(NewUserStatus(s.userID, true))
	log.Debug("websocket session started")

	go s.writePump(log)
	s.readPump(ctx, log)

	s.teardown(log)
}

// teardown releases the registry slot and closes the transport exactly once.
// The offline broadcast is skipped when a newer session has already replaced
// this one, so a reconnect never looks like a disconnect to other users.
func (s *Session) teardown(log *slog.Logger) {
	s.closeOnce.Do(func() {
		wasLive := s.registry.Release(s.userID, s.send)
		close(s.done)
		_ = s.conn.Close()

		if wasLive {
			s.registry.BroadcastAll(NewUserStatus(s.userID, false))
		}
		log.Debug("websocket session ended", slog.Bool("was_live", wasLive))
	})
}

// readPump consumes frames from the peer until the connection errors. Each
// frame is decoded and dispatched to the handler; decode and handler
// failures are reported to the client without ending the session.
func (s *Session) readPump(ctx context.Context, log *slog.Logger) {
	s.conn.SetReadLimit(maxInboundBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			if errors.Is(err, ErrMalformedClientMessage) {
				s.reply(NewErrorEnvelope("malformed message"))
			} else {
				s.reply(NewErrorEnvelope(err.Error()))
			}
			continue
		}

		if err := s.handler.HandleClientMessage(ctx, s.userID, msg); err != nil {
			log.Warn("client message rejected",
				slog.String("error", err.Error()),
			)
			s.reply(NewErrorEnvelope(err.Error()))
		}
	}
}

// writePump drains the sink onto the wire and keeps the connection alive
// with periodic pings. It exits when the session is done or a write fails;
// a failed write wakes the read pump by closing the transport.
func (s *Session) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				log.Debug("websocket write failed", slog.String("error", err.Error()))
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// reply enqueues an envelope for this session directly, bypassing the
// registry. Used for per-session error reports that must not leak to a
// replacement session.
func (s *Session) reply(env Envelope) {
	select {
	case s.send <- env:
	default:
	}
}
