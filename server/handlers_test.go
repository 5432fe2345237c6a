package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"courier/auth"
	"courier/mocks"
	"courier/repositories"
	"courier/runtime"
	"courier/services"
)

func newTestServer(t *testing.T) (*httptest.Server, *runtime.Registry, *auth.TokenService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenService("handler-test-secret", time.Hour)
	registry := runtime.NewRegistry()

	// No router or store expectations: handshake tests never route a frame.
	s := NewServer(log, tokens, nil,
		mocks.NewMockIRouter(ctrl), registry,
		mocks.NewMockIMessageRepository(ctrl), nil,
		nil, 8, 4096)

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts, registry, tokens
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestWebSocketHandler_MissingToken(t *testing.T) {
	req := require.New(t)
	ts, registry, _ := newTestServer(t)

	// When a client dials without any credential
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)

	// Then the handshake is refused before any upgrade
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Zero(registry.Size())
}

func TestWebSocketHandler_InvalidToken(t *testing.T) {
	req := require.New(t)
	ts, registry, _ := newTestServer(t)

	header := http.Header{"Authorization": []string{"Bearer not-a-jwt"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)

	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Zero(registry.Size())
}

func TestWebSocketHandler_ValidToken_RegistersSession(t *testing.T) {
	req := require.New(t)
	ts, registry, tokens := newTestServer(t)
	identity := uuid.NewString()

	token, err := tokens.GenerateToken(identity)
	req.NoError(err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	req.NoError(err)
	req.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	defer conn.Close()

	// The session is registered under the verified identity
	req.Eventually(func() bool {
		return len(registry.ConnectionsFor(identity)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_TokenQueryFallback(t *testing.T) {
	req := require.New(t)
	ts, registry, tokens := newTestServer(t)
	identity := uuid.NewString()

	token, err := tokens.GenerateToken(identity)
	req.NoError(err)

	// Browser clients cannot set headers on websocket dials
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts)+"?token="+token, nil)
	req.NoError(err)
	defer conn.Close()

	req.Eventually(func() bool {
		return len(registry.ConnectionsFor(identity)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_DisconnectDeregisters(t *testing.T) {
	req := require.New(t)
	ts, registry, tokens := newTestServer(t)
	identity := uuid.NewString()

	token, err := tokens.GenerateToken(identity)
	req.NoError(err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	req.NoError(err)

	req.Eventually(func() bool { return registry.Size() == 1 }, time.Second, 10*time.Millisecond)

	// When the transport drops
	req.NoError(conn.Close())

	// Then the session is removed and the identity becomes unroutable
	req.Eventually(func() bool {
		return registry.Size() == 0 && len(registry.ConnectionsFor(identity)) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRegisterAndLoginHandlers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenService("handler-test-secret", time.Hour)
	repo := mocks.NewMockIUserRepository(ctrl)
	authService := services.NewAuthService(repo, tokens)

	s := NewServer(log, tokens, authService,
		mocks.NewMockIRouter(ctrl), runtime.NewRegistry(),
		mocks.NewMockIMessageRepository(ctrl), nil,
		nil, 8, 4096)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	var storedHash string
	repo.EXPECT().
		CreateUser("alice", "alice@example.com", gomock.Any()).
		DoAndReturn(func(_, _, hashedPassword string) (string, error) {
			storedHash = hashedPassword
			return uuid.NewString(), nil
		})

	// Register
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json",
		strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"Sup3r-Secret-Pass!"}`))
	req.NoError(err)
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Login with the right password
	repo.EXPECT().
		GetUserByEmail("alice@example.com").
		DoAndReturn(func(string) (repositories.User, error) {
			return repositories.User{ID: uuid.NewString(), Email: "alice@example.com", PasswordHash: storedHash}, nil
		})
	resp, err = http.Post(ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"alice@example.com","password":"Sup3r-Secret-Pass!"}`))
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Login with the wrong password gets the generic refusal
	repo.EXPECT().
		GetUserByEmail("alice@example.com").
		DoAndReturn(func(string) (repositories.User, error) {
			return repositories.User{ID: uuid.NewString(), Email: "alice@example.com", PasswordHash: storedHash}, nil
		})
	resp, err = http.Post(ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"alice@example.com","password":"Wrong-Passw0rd!"}`))
	req.NoError(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
