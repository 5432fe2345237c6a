package domain

import "time"

// SendIntent is a client-submitted request to send a message, not yet
// persisted. SenderID is bound from the authenticated session, never from
// the inbound payload.
type SendIntent struct {
	SenderID    string
	RecipientID string
	Content     string
	ReceivedAt  time.Time
}
