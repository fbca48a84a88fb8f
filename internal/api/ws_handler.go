// Package api holds the HTTP-facing surface of the real-time subsystem:
// the WebSocket attachment point and the Server-Sent Events streams.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/phrazzld/taskhub-api/internal/api/middleware"
	"github.com/phrazzld/taskhub-api/internal/api/shared"
	"github.com/phrazzld/taskhub-api/internal/realtime"
)

// WSHandler upgrades authenticated requests to WebSocket connections and
// runs a realtime.Session for each until the peer goes away.
type WSHandler struct {
	registry *realtime.Registry
	handler  realtime.ClientMessageHandler
	sendBuf  int
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler. sendBuf sizes each session's outbound
// queue.
func NewWSHandler(registry *realtime.Registry, handler realtime.ClientMessageHandler, sendBuf int) *WSHandler {
	return &WSHandler{
		registry: registry,
		handler:  handler,
		sendBuf:  sendBuf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth is the access check; the WS endpoint serves
			// non-browser clients too, so origin is not restricted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the request and blocks for the life of the connection.
// Requires the auth middleware to have run.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Debug("websocket upgrade failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return
	}

	realtime.NewSession(h.registry, h.handler, conn, userID, h.sendBuf).Run(r.Context())
}
