package errors

import "fmt"

// Connection admission errors. Both are fatal to the connection attempt.
var (
	ErrMissingCredential = fmt.Errorf("authentication token missing")
	ErrInvalidCredential = fmt.Errorf("invalid or expired token")
)

// Send intent errors. Fatal to the single intent only, the connection stays open.
var (
	ErrRecipientRequired = fmt.Errorf("recipient is required")
	ErrRecipientInvalid  = fmt.Errorf("recipient is not a valid identity")
	ErrContentTooLarge   = fmt.Errorf("content exceeds maximum length")
	ErrStoreUnavailable  = fmt.Errorf("message store unavailable")
)

// Per-connection delivery errors. Logged and isolated, never propagated.
var (
	ErrConnectionSaturated = fmt.Errorf("connection buffer full")
	ErrConnectionClosed    = fmt.Errorf("connection closed")
)

// Account errors surfaced by the identity endpoints.
var (
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")
