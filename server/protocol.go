package server

import (
	"fmt"
	"time"

	"courier/domain"
)

// Frame types exchanged after authentication. A client only ever emits
// "send"; the server emits "message" for deliveries and "error" for
// per-intent failures that leave the connection open.
const (
	FrameTypeSend    = "send"
	FrameTypeMessage = "message"
	FrameTypeError   = "error"
)

// ClientFrame is an inbound send intent. The sender identity is never read
// from the frame; it is bound from the authenticated session.
type ClientFrame struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// ServerFrame is an outbound event: either a delivered message carrying the
// server-assigned id and timestamp, or an error description.
type ServerFrame struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

func toMessageFrame(message domain.Message) ServerFrame {
	return ServerFrame{
		Type:      FrameTypeMessage,
		MessageID: message.ID.String(),
		SenderID:  message.SenderID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
}

func toErrorFrame(err error) ServerFrame {
	return ServerFrame{Type: FrameTypeError, Error: err.Error()}
}

var errMalformedFrame = fmt.Errorf("malformed frame")
