// Package server is the transport boundary: websocket connection lifecycle
// and the HTTP identity endpoints. Authentication happens exactly once, at
// handshake time, before a connection is admitted.
package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"courier/auth"
	"courier/contract"
	"courier/runtime/workers"
	"courier/services"
)

type Server struct {
	log         *slog.Logger
	tokens      *auth.TokenService
	authService services.IAuthService
	router      contract.IRouter
	registry    contract.IRegistry
	messages    contract.IMessageRepository
	health      *workers.HealthMonitoringWorker

	upgrader             websocket.Upgrader
	connectionBufferSize int
	maxFrameSize         int64
}

func NewServer(log *slog.Logger, tokens *auth.TokenService,
	authService services.IAuthService, router contract.IRouter,
	registry contract.IRegistry, messages contract.IMessageRepository,
	health *workers.HealthMonitoringWorker,
	allowedOrigins []string, connectionBufferSize int, maxFrameSize int64) *Server {
	return &Server{
		log:         log,
		tokens:      tokens,
		authService: authService,
		router:      router,
		registry:    registry,
		messages:    messages,
		health:      health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connectionBufferSize: connectionBufferSize,
		maxFrameSize:         maxFrameSize,
	}
}

// originChecker allows browser handshakes from the configured origins.
// An empty list allows everything, which suits tests and same-host clients.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimSuffix(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		_, ok := set[strings.TrimSuffix(origin, "/")]
		return ok
	}
}

// WebSocketHandler runs the connection lifecycle: verify the handshake
// credential, upgrade, register the session, pump frames until the
// transport closes, then deregister exactly once.
//
// A failed verification never mutates the registry and never upgrades the
// transport: there is no partial admission.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := s.tokens.VerifyToken(bearerToken(r))
	if err != nil {
		s.log.Warn("Handshake rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connectionID := uuid.NewString()
	c := NewConnection(conn, s.log, s.router, s.registry,
		identity, connectionID, s.connectionBufferSize, s.maxFrameSize)

	s.registry.Register(identity, connectionID, c.Sink())
	s.log.Info("Connection authenticated",
		"identity", identity,
		"connection_id", connectionID,
		"remote", r.RemoteAddr)

	go c.writePump()
	c.readPump()
}

// bearerToken extracts the handshake credential: the Authorization header,
// or a token query parameter for browser clients that cannot set headers on
// websocket dials. An absent credential is reported as missing, not invalid.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
