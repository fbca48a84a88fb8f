package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskhub-api/internal/api/shared"
	"github.com/phrazzld/taskhub-api/internal/broadcast"
	"github.com/phrazzld/taskhub-api/internal/domain"
)

// asUser injects an authenticated user ID the way the auth middleware does.
func asUser(userID uuid.UUID, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// sseLines reads data frames from an open SSE response into a channel.
func sseLines(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	return lines
}

func openStream(t *testing.T, url string) (*http.Response, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = resp.Body.Close()
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp, cancel
}

func waitSubscribed[T any](t *testing.T, b *broadcast.Broadcaster[T]) {
	t.Helper()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStreamHandler_Notifications(t *testing.T) {
	t.Parallel()

	topics := broadcast.NewTopics(8)
	h := NewStreamHandler(topics, time.Minute)
	userID := uuid.New()

	server := httptest.NewServer(asUser(userID, h.Notifications))
	defer func() {
		server.CloseClientConnections()
		server.Close()
	}()

	resp, _ := openStream(t, server.URL)
	lines := sseLines(t, resp)
	waitSubscribed(t, topics.Notifications)

	topics.Notifications.Publish(broadcast.NotificationEvent{UserID: uuid.New(), Message: "someone else's"})
	topics.Notifications.Publish(broadcast.NotificationEvent{UserID: userID, Message: "Reminder: file taxes is due soon!"})

	select {
	case line := <-lines:
		assert.JSONEq(t, `{"message":"Reminder: file taxes is due soon!"}`, line)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived on the stream")
	}
}

func TestStreamHandler_Tasks_FiltersByVisibility(t *testing.T) {
	t.Parallel()

	topics := broadcast.NewTopics(8)
	h := NewStreamHandler(topics, time.Minute)
	userID := uuid.New()

	server := httptest.NewServer(asUser(userID, h.Tasks))
	defer func() {
		server.CloseClientConnections()
		server.Close()
	}()

	resp, _ := openStream(t, server.URL)
	lines := sseLines(t, resp)
	waitSubscribed(t, topics.Tasks)

	hidden, err := domain.NewTask(uuid.New(), "not yours")
	require.NoError(t, err)
	topics.Tasks.Publish(broadcast.TaskEvent{UserIDs: []uuid.UUID{hidden.UserID}, Task: *hidden})

	visible, err := domain.NewTask(userID, "yours")
	require.NoError(t, err)
	topics.Tasks.Publish(broadcast.TaskEvent{UserIDs: []uuid.UUID{userID}, Task: *visible})

	select {
	case line := <-lines:
		assert.Contains(t, line, visible.ID.String())
		assert.Contains(t, line, "yours")
		assert.NotContains(t, line, "not yours")
	case <-time.After(2 * time.Second):
		t.Fatal("task event never arrived on the stream")
	}
}

func TestStreamHandler_Messages_BothParticipantsSee(t *testing.T) {
	t.Parallel()

	topics := broadcast.NewTopics(8)
	h := NewStreamHandler(topics, time.Minute)
	senderID := uuid.New()
	receiverID := uuid.New()

	msg, err := domain.NewMessage(senderID, receiverID, "hello", nil)
	require.NoError(t, err)

	for name, viewer := range map[string]uuid.UUID{"sender": senderID, "receiver": receiverID} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(asUser(viewer, h.Messages))
			defer func() {
				server.CloseClientConnections()
				server.Close()
			}()

			resp, _ := openStream(t, server.URL)
			lines := sseLines(t, resp)
			waitSubscribed(t, topics.Messages)

			topics.Messages.Publish(broadcast.MessageEvent{Message: *msg})

			select {
			case line := <-lines:
				assert.Contains(t, line, msg.ID.String())
			case <-time.After(2 * time.Second):
				t.Fatal("message never arrived on the stream")
			}
		})
	}
}

func TestStreamHandler_DisconnectReleasesSubscription(t *testing.T) {
	t.Parallel()

	topics := broadcast.NewTopics(8)
	h := NewStreamHandler(topics, time.Minute)

	server := httptest.NewServer(asUser(uuid.New(), h.Notifications))
	defer server.Close()

	_, cancel := openStream(t, server.URL)
	waitSubscribed(t, topics.Notifications)

	cancel()
	require.Eventually(t, func() bool {
		return topics.Notifications.SubscriberCount() == 0
	}, 2*time.Second, 5*time.Millisecond, "stream exit must release its subscription")
}

func TestStreamHandler_Heartbeat(t *testing.T) {
	t.Parallel()

	topics := broadcast.NewTopics(8)
	h := NewStreamHandler(topics, 20*time.Millisecond)

	server := httptest.NewServer(asUser(uuid.New(), h.Notifications))
	defer func() {
		server.CloseClientConnections()
		server.Close()
	}()

	resp, _ := openStream(t, server.URL)

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	got := make(chan string, 1)
	go func() {
		line, err := reader.ReadString('\n')
		if err == nil {
			got <- line
		}
	}()

	select {
	case line := <-got:
		assert.True(t, strings.HasPrefix(line, ":"), "idle stream should emit comment keep-alives, got %q", line)
	case <-deadline:
		t.Fatal("no keep-alive arrived on idle stream")
	}
}

func TestStreamHandler_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	h := NewStreamHandler(broadcast.NewTopics(8), time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream", nil)
	rec := httptest.NewRecorder()

	h.Notifications(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
