package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"courier/contract"
	"courier/domain"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Connection is one live authenticated transport session. Its lifecycle is
// Connecting (before VerifyToken) -> Authenticated (registered, pumps
// running) -> Closed (deregistered exactly once). The read pump dispatches
// send intents to the router synchronously, so one sender's stream is never
// reordered; the write pump is the only goroutine writing to the socket.
type Connection struct {
	conn     *websocket.Conn
	sink     *ConnSink
	errs     chan ServerFrame
	log      *slog.Logger
	router   contract.IRouter
	registry contract.IRegistry

	identity  string
	id        string
	createdAt time.Time

	maxFrameSize int64
	done         chan struct{}
	closeOnce    sync.Once
}

func NewConnection(conn *websocket.Conn, log *slog.Logger,
	router contract.IRouter, registry contract.IRegistry,
	identity, connectionID string, bufferSize int, maxFrameSize int64) *Connection {
	return &Connection{
		conn:         conn,
		sink:         NewConnSink(bufferSize),
		errs:         make(chan ServerFrame, 8),
		log:          log,
		router:       router,
		registry:     registry,
		identity:     identity,
		id:           connectionID,
		createdAt:    time.Now().UTC(),
		maxFrameSize: maxFrameSize,
		done:         make(chan struct{}),
	}
}

// Sink exposes the delivery endpoint registered for this connection.
func (c *Connection) Sink() *ConnSink {
	return c.sink
}

// teardown deregisters the connection and closes the transport. Both pumps
// defer it; sync.Once guarantees a double-close never deregisters twice.
func (c *Connection) teardown() {
	c.closeOnce.Do(func() {
		c.registry.Deregister(c.identity, c.id)
		close(c.done)
		_ = c.conn.Close()
		c.log.Info("Connection closed",
			"identity", c.identity,
			"connection_id", c.id)
	})
}

func (c *Connection) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(c.maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame processes one inbound frame. Every failure here is fatal to
// the single intent only: the client gets an error frame and the connection
// stays open.
func (c *Connection) handleFrame(raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.log.Debug("Malformed frame", "identity", c.identity, "error", err)
		c.reportIntentError(toErrorFrame(errMalformedFrame))
		return
	}
	if frame.Type != FrameTypeSend {
		c.reportIntentError(ServerFrame{Type: FrameTypeError, Error: "unsupported frame type: " + frame.Type})
		return
	}

	intent := domain.SendIntent{
		SenderID:    c.identity, // bound from the session, never the payload
		RecipientID: frame.RecipientID,
		Content:     frame.Content,
		ReceivedAt:  time.Now().UTC(),
	}

	// Background context on purpose: an intent already read off the wire is
	// not canceled because the sender disconnects right after sending. The
	// store applies its own deadline.
	if _, err := c.router.Route(context.Background(), intent); err != nil {
		c.reportIntentError(toErrorFrame(err))
	}
}

func (c *Connection) reportIntentError(frame ServerFrame) {
	select {
	case c.errs <- frame:
	case <-c.done:
	default:
		c.log.Warn("Error frame dropped, buffer full", "identity", c.identity)
	}
}

func (c *Connection) logReadError(err error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("Client disconnected", "identity", c.identity, "connection_id", c.id)
		return
	}
	if websocket.IsUnexpectedCloseError(err) {
		c.log.Warn("Unexpected close", "identity", c.identity, "connection_id", c.id, "error", err)
		return
	}
	c.log.Warn("Read error", "identity", c.identity, "connection_id", c.id, "error", err)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.sink.Messages:
			if !c.writeFrame(toMessageFrame(message)) {
				return
			}
		case frame := <-c.errs:
			if !c.writeFrame(frame) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "identity", c.identity, "error", err)
				return
			}
		}
	}
}

func (c *Connection) writeFrame(frame ServerFrame) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.log.Debug("Write failed", "identity", c.identity, "connection_id", c.id, "error", err)
		return false
	}
	return true
}
