package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskhub-api/internal/api/middleware"
	"github.com/phrazzld/taskhub-api/internal/realtime"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
)

// tokenJWTService validates a single fixed token as a single fixed user.
type tokenJWTService struct {
	token  string
	userID uuid.UUID
}

func (s *tokenJWTService) GenerateToken(context.Context, uuid.UUID) (string, error) {
	return s.token, nil
}

func (s *tokenJWTService) ValidateToken(_ context.Context, tokenString string) (*auth.Claims, error) {
	if tokenString != s.token {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: s.userID}, nil
}

// nopHandler accepts every client message.
type nopHandler struct{}

func (nopHandler) HandleClientMessage(context.Context, uuid.UUID, realtime.ClientMessage) error {
	return nil
}

func newWSServer(t *testing.T, registry *realtime.Registry, jwt auth.JWTService) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	authMw := middleware.NewAuthMiddleware(jwt)
	wsHandler := NewWSHandler(registry, nopHandler{}, 16)
	r.With(authMw.Authenticate).Get("/ws", wsHandler.HandleWS)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestWSHandler_AuthenticatedUpgrade(t *testing.T) {
	t.Parallel()

	registry := realtime.NewRegistry()
	userID := uuid.New()
	server := newWSServer(t, registry, &tokenJWTService{token: "good-token", userID: userID})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=good-token"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// The session comes up registered and announces presence.
	require.Eventually(t, func() bool {
		return registry.IsOnline(userID)
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env realtime.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, realtime.TypeUserStatus, env.Type())
	payload, ok := env.Payload().(realtime.UserStatusPayload)
	require.True(t, ok)
	assert.Equal(t, userID, payload.UserID)
	assert.True(t, payload.IsOnline)
}

func TestWSHandler_RejectsBadToken(t *testing.T) {
	t.Parallel()

	registry := realtime.NewRegistry()
	server := newWSServer(t, registry, &tokenJWTService{token: "good-token", userID: uuid.New()})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, registry.OnlineCount())
}

func TestWSHandler_RejectsMissingToken(t *testing.T) {
	t.Parallel()

	registry := realtime.NewRegistry()
	server := newWSServer(t, registry, &tokenJWTService{token: "good-token", userID: uuid.New()})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
