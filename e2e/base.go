package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"

	"courier/auth"
	"courier/client"
	"courier/repositories"
	"courier/runtime"
	"courier/server"
	"courier/services"
)

// BaseSuite wires a complete backend for the scenarios: an in-memory store,
// the registry, the router and the full HTTP surface. COURIER_ADDR switches
// the suite to an externally running server instead.
type BaseSuite struct {
	suite.Suite
	Config  Config
	BaseURL string

	db       *badger.DB
	registry *runtime.Registry
	ts       *httptest.Server
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.CourierAddr != "" {
		s.BaseURL = s.Config.CourierAddr
		return
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if s.Config.Debug {
		log = slog.Default()
	}

	s.db, err = badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	tokens := auth.NewTokenService("e2e-secret", time.Hour)
	s.registry = runtime.NewRegistry()
	messages := repositories.NewMessageRepository(s.db, log, 5*time.Second)
	router := runtime.NewRouter(log, s.registry, messages, 4096, 3*time.Second)
	authService := services.NewAuthService(repositories.NewUserRepository(s.db), tokens)

	srv := server.NewServer(log, tokens, authService, router, s.registry,
		messages, nil, nil, 64, 8192)
	s.ts = httptest.NewServer(srv.Routes())
	s.BaseURL = s.ts.URL
}

func (s *BaseSuite) TearDownSuite() {
	if s.ts != nil {
		s.ts.Close()
	}
	if s.db != nil {
		s.Require().NoError(s.db.Close())
	}
}

// Step prints a colorized header so scenario phases stand out in test logs.
func (s *BaseSuite) Step(name string) {
	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("  ====== %s ======", name))
	s.T().Log(header)
}

// ConnectedUser registers a fresh account and opens one websocket session
// for it. The session is closed when the test ends.
func (s *BaseSuite) ConnectedUser(username string) (userID string, session *client.Session) {
	api := client.New(s.BaseURL)

	email := fmt.Sprintf("%s@example.com", username)
	token, err := api.Register(username, email, "Sup3r-Secret-Pass!")
	s.Require().NoError(err)

	// The server already verified this token when it issued it; the suite
	// only needs the subject claim to address messages.
	claims := auth.CustomClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, &claims)
	s.Require().NoError(err)
	userID = claims.UserID
	s.Require().NotEmpty(userID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err = api.Connect(ctx, token)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = session.Close() })

	return userID, session
}

// Receive waits for the next pushed frame, failing after the configured
// receive timeout.
func (s *BaseSuite) Receive(session *client.Session) client.ReceivedMessage {
	select {
	case frame, ok := <-session.Incoming:
		s.Require().True(ok, "Session closed while waiting for a frame")
		if s.Config.Debug {
			s.T().Logf("Received frame: %+v", frame)
		}
		return frame
	case <-time.After(s.Config.ReceiveTimeout):
		s.FailNow("Timed out waiting for a frame")
		return client.ReceivedMessage{}
	}
}

// ExpectSilence asserts that no frame arrives within the given window.
func (s *BaseSuite) ExpectSilence(session *client.Session, window time.Duration) {
	select {
	case frame, ok := <-session.Incoming:
		if ok {
			s.FailNowf("Unexpected frame", "got %+v", frame)
		}
	case <-time.After(window):
	}
}
