// Package domain contains core concepts of the messaging system.
// This file defines the Message record and related invariants.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted, immutable, server-stamped communication record.
// ID and CreatedAt are assigned by the server; client-supplied values are
// never trusted.
type Message struct {
	ID          uuid.UUID
	SenderID    string
	RecipientID string
	Content     string
	CreatedAt   time.Time
}
