package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	goerrors "errors"

	"courier/errors"
)

type registerPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Routes builds the HTTP surface: the identity endpoints, the websocket
// endpoint, a liveness root, and the /test diagnostic.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.RegisterHandler)
	mux.HandleFunc("POST /api/auth/login", s.LoginHandler)
	mux.HandleFunc("GET /ws", s.WebSocketHandler)
	mux.HandleFunc("GET /test", s.DiagnosticHandler)
	mux.HandleFunc("GET /{$}", s.RootHandler)
	return mux
}

// RegisterHandler creates an account and returns the initial bearer token.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := s.authService.Register(payload.Username, payload.Email, payload.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	case goerrors.Is(err, errors.ErrUserAlreadyExists):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "User already exists"})
	case goerrors.Is(err, errors.ErrInvalidPassword), goerrors.Is(err, errors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.log.Error("Register failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Server error"})
	}
}

// LoginHandler exchanges credentials for a bearer token. Unknown email and
// wrong password produce the same response to prevent user enumeration.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := s.authService.Login(payload.Email, payload.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
	case goerrors.Is(err, errors.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid credentials"})
	case goerrors.Is(err, errors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.log.Error("Login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Server error"})
	}
}

// RootHandler is a plain liveness probe.
func (s *Server) RootHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Courier backend is running!")
}

// DiagnosticHandler reports the stored-message count and the latest process
// self-stats. It is the only read surface over the message store.
func (s *Server) DiagnosticHandler(w http.ResponseWriter, _ *http.Request) {
	count, err := s.messages.CountAll()
	if err != nil {
		s.log.Error("Diagnostic count failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}

	body := map[string]any{
		"message_count":    count,
		"live_connections": s.registry.Size(),
	}
	if s.health != nil {
		body["process"] = s.health.GetLatest()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
