//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"courier/domain"
	"courier/errors"
)

const messagePrefix = "msg:"

type MessageRepository struct {
	db           *badger.DB
	log          *slog.Logger
	storeTimeout time.Duration
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, storeTimeout time.Duration) *MessageRepository {
	return &MessageRepository{db: db, log: log, storeTimeout: storeTimeout}
}

// diskMessage is the stored representation of a message.
type diskMessage struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	At          int64  `json:"at"`
}

// messageKey builds "msg:{recipient}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero padding keeps keys in chronological order under a
//     lexicographical scan.
//  2. The UUID acts as a collision disconnector if two messages arrive at
//     the same nanosecond.
func messageKey(recipient string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", messagePrefix, recipient, at.UnixNano(), id))
}

// StoreMessage assigns the server-side identifier and timestamp and persists
// the record. Either the message is written and the canonical record
// returned, or nothing is written. A write that outlives storeTimeout (or
// the caller's context) fails with ErrStoreUnavailable; the badger write
// itself is left to complete or fail on its own, it is never half-applied.
func (m *MessageRepository) StoreMessage(ctx context.Context, sender, recipient, content string) (domain.Message, error) {
	message := domain.Message{
		ID:          uuid.New(),
		SenderID:    sender,
		RecipientID: recipient,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}

	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.db.Update(func(txn *badger.Txn) error {
			return txn.Set(messageKey(recipient, message.CreatedAt, message.ID), bytes)
		})
	}()

	select {
	case err = <-done:
		if err != nil {
			return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		return message, nil
	case <-ctx.Done():
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, ctx.Err())
	}
}

// CountAll counts every stored message. Used by the /test diagnostic only;
// values are not prefetched, the iterator walks keys.
func (m *MessageRepository) CountAll() (int, error) {
	var count int
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return count, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:          message.ID.String(),
		SenderID:    message.SenderID,
		RecipientID: message.RecipientID,
		Content:     message.Content,
		At:          message.CreatedAt.UnixNano(),
	}
}

// ToMessage converts a stored payload back to the domain record. Exported
// for the read-only inspect tool.
func ToMessage(value []byte) (domain.Message, error) {
	var disk diskMessage
	if err := json.Unmarshal(value, &disk); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:          parsedID,
		SenderID:    disk.SenderID,
		RecipientID: disk.RecipientID,
		Content:     disk.Content,
		CreatedAt:   time.Unix(0, disk.At).UTC(),
	}, nil
}
