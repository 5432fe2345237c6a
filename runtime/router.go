package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier/contract"
	"courier/domain"
	"courier/errors"
)

// Router is the delivery path from a validated send intent to the
// recipient's live connections. Route is called synchronously from each
// connection's read loop, which preserves per-sender ordering; different
// connections route concurrently.
type Router struct {
	log              *slog.Logger
	registry         contract.IRegistry
	messages         contract.IMessageRepository
	maxContentLength int
	deliveryTimeout  time.Duration
}

func NewRouter(log *slog.Logger, registry contract.IRegistry,
	messages contract.IMessageRepository,
	maxContentLength int, deliveryTimeout time.Duration) *Router {
	return &Router{
		log:              log,
		registry:         registry,
		messages:         messages,
		maxContentLength: maxContentLength,
		deliveryTimeout:  deliveryTimeout,
	}
}

// Route validates the intent, persists it, and pushes the persisted record
// to every live connection of the recipient.
//
// Persistence failure aborts the whole call: nothing is pushed and the
// error propagates so the connection can report it and stay open. Push
// failures do the opposite: each connection is pushed independently and a
// dead or saturated one only produces a log line, never a route failure.
// A recipient with zero connections is a successful route with zero pushes.
func (r *Router) Route(ctx context.Context, intent domain.SendIntent) (domain.Message, error) {
	if err := validateIntent(intent, r.maxContentLength); err != nil {
		return domain.Message{}, err
	}

	message, err := r.messages.StoreMessage(ctx, intent.SenderID, intent.RecipientID, intent.Content)
	if err != nil {
		r.log.Error("message persistence failed",
			"sender_id", intent.SenderID,
			"recipient_id", intent.RecipientID,
			"error", err)
		return domain.Message{}, err
	}

	r.fanout(message)
	return message, nil
}

// fanout pushes one immutable message to each recipient sink concurrently.
// The sender's context is deliberately not used here: an intent already
// accepted and persisted is delivered even if the sender disconnects right
// after sending.
func (r *Router) fanout(message domain.Message) {
	sinks := r.registry.SinksFor(message.RecipientID)
	if len(sinks) == 0 {
		r.log.Debug("recipient offline, persisted only",
			"recipient_id", message.RecipientID,
			"message_id", message.ID)
		return
	}

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink contract.EventSink) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.deliveryTimeout)
			defer cancel()
			if err := sink.Consume(ctx, message); err != nil {
				r.log.Warn("push to connection failed",
					"recipient_id", message.RecipientID,
					"message_id", message.ID,
					"error", err)
			}
		}(sink)
	}
	wg.Wait()
}

func validateIntent(intent domain.SendIntent, maxContentLength int) error {
	if intent.RecipientID == "" {
		return errors.ErrRecipientRequired
	}
	if _, err := uuid.Parse(intent.RecipientID); err != nil {
		return fmt.Errorf("%w: %q", errors.ErrRecipientInvalid, intent.RecipientID)
	}
	if len(intent.Content) > maxContentLength {
		return fmt.Errorf("%w: %d > %d bytes", errors.ErrContentTooLarge, len(intent.Content), maxContentLength)
	}
	return nil
}
