// Package client is a small Go client for the courier backend: HTTP calls
// for the identity endpoints and a websocket session for messaging. It is
// used by the tester binary and the end-to-end tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Register creates an account and returns the issued bearer token.
func (c *Client) Register(username, email, password string) (string, error) {
	return c.postForToken("/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, http.StatusCreated)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(email, password string) (string, error) {
	return c.postForToken("/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
}

func (c *Client) postForToken(path string, payload map[string]string, wantStatus int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if resp.StatusCode != wantStatus {
		return "", fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, decoded.Error)
	}
	return decoded.Token, nil
}

// ReceivedMessage is one delivered message, as pushed by the server.
type ReceivedMessage struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error"`
}

// Session is one live websocket connection bound to an identity.
type Session struct {
	conn     *websocket.Conn
	Incoming chan ReceivedMessage
}

// Connect dials the websocket endpoint, presenting the token at handshake
// time, and starts draining server frames into Incoming.
func (c *Client) Connect(ctx context.Context, token string) (*Session, error) {
	wsURL, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, err
	}
	switch wsURL.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	session := &Session{
		conn:     conn,
		Incoming: make(chan ReceivedMessage, 64),
	}
	go session.readLoop()
	return session, nil
}

// Send submits one send intent. Delivery errors come back asynchronously on
// Incoming as error frames.
func (s *Session) Send(recipientID, content string) error {
	return s.conn.WriteJSON(map[string]string{
		"type":         "send",
		"recipient_id": recipientID,
		"content":      content,
	})
}

func (s *Session) readLoop() {
	defer close(s.Incoming)
	for {
		var frame ReceivedMessage
		if err := s.conn.ReadJSON(&frame); err != nil {
			return
		}
		s.Incoming <- frame
	}
}

func (s *Session) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
