package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/phrazzld/taskhub-api/internal/api/middleware"
	"github.com/phrazzld/taskhub-api/internal/api/shared"
	"github.com/phrazzld/taskhub-api/internal/broadcast"
)

// StreamHandler serves the Server-Sent Events endpoints. Each open stream
// holds one subscription on its topic, forwards the caller's events as SSE
// data frames, and emits comment frames as keep-alives while idle.
type StreamHandler struct {
	topics    *broadcast.Topics
	heartbeat time.Duration
}

// NewStreamHandler creates a StreamHandler with the given keep-alive
// interval.
func NewStreamHandler(topics *broadcast.Topics, heartbeat time.Duration) *StreamHandler {
	return &StreamHandler{topics: topics, heartbeat: heartbeat}
}

// Notifications streams the caller's notifications.
func (h *StreamHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	serveSSE(w, r, h.topics.Notifications.Subscribe(), h.heartbeat,
		func(e broadcast.NotificationEvent) bool { return e.UserID == userID },
		func(e broadcast.NotificationEvent) any {
			return struct {
				Message string `json:"message"`
			}{Message: e.Message}
		})
}

// Tasks streams task change events visible to the caller.
func (h *StreamHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	serveSSE(w, r, h.topics.Tasks.Subscribe(), h.heartbeat,
		func(e broadcast.TaskEvent) bool { return e.Visible(userID) },
		func(e broadcast.TaskEvent) any { return e.Task })
}

// Messages streams chat messages addressed to or sent by the caller.
func (h *StreamHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	serveSSE(w, r, h.topics.Messages.Subscribe(), h.heartbeat,
		func(e broadcast.MessageEvent) bool {
			return e.Message.ReceiverID == userID || e.Message.SenderID == userID
		},
		func(e broadcast.MessageEvent) any { return e.Message })
}

// serveSSE pumps a subscription onto the wire as an SSE stream until the
// client disconnects. The subscription is always released on exit. The
// ResponseWriter is shared with the heartbeat goroutine, so every write
// goes through a mutex-guarded frame writer.
func serveSSE[T any](
	w http.ResponseWriter,
	r *http.Request,
	sub *broadcast.Subscription[T],
	heartbeat time.Duration,
	keep func(T) bool,
	view func(T) any,
) {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var writeMu sync.Mutex
	writeFrame := func(format string, args ...any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := fmt.Fprintf(w, format, args...); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if writeFrame(": keep-alive\n\n") != nil {
					cancel()
					return
				}
			}
		}
	}()

	_ = broadcast.Stream(ctx, sub, keep, func(event T) error {
		data, err := json.Marshal(view(event))
		if err != nil {
			slog.Error("failed to encode SSE event", "error", err)
			return nil
		}
		return writeFrame("data: %s\n\n", data)
	})
}
