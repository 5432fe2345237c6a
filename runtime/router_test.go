package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"courier/domain"
	"courier/errors"
	"courier/mocks"
)

// recordingSink keeps every delivered message, optionally failing first.
type recordingSink struct {
	mu       sync.Mutex
	fail     bool
	received []domain.Message
}

func (s *recordingSink) Consume(ctx context.Context, msg domain.Message) error {
	if s.fail {
		return errors.ErrConnectionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
	return nil
}

func (s *recordingSink) Received() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.received...)
}

func newTestRouter(t *testing.T, registry *Registry) (*Router, *mocks.MockIMessageRepository) {
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockIMessageRepository(ctrl)
	router := NewRouter(slog.Default(), registry, messages, 1024, time.Second)
	return router, messages
}

func persistedMessage(intent domain.SendIntent) domain.Message {
	return domain.Message{
		ID:          uuid.New(),
		SenderID:    intent.SenderID,
		RecipientID: intent.RecipientID,
		Content:     intent.Content,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestRoute_OfflineRecipient_PersistsWithoutPush(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router, messages := newTestRouter(t, registry)
	intent := domain.SendIntent{
		SenderID:    uuid.NewString(),
		RecipientID: uuid.NewString(),
		Content:     "hello carol",
		ReceivedAt:  time.Now().UTC(),
	}

	// Given the recipient has no live connection
	// And persistence succeeds
	messages.EXPECT().
		StoreMessage(gomock.Any(), intent.SenderID, intent.RecipientID, intent.Content).
		Return(persistedMessage(intent), nil)

	// When the intent is routed
	message, err := router.Route(context.Background(), intent)

	// Then the route succeeds with zero pushes and no error
	req.NoError(err)
	req.Equal(intent.Content, message.Content)
	req.NotZero(message.ID)
}

func TestRoute_MultiDevice_AllConnectionsReceiveIdenticalCopy(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router, messages := newTestRouter(t, registry)
	recipient := uuid.NewString()

	// Given the recipient is connected on three devices
	sinks := []*recordingSink{{}, {}, {}}
	for _, sink := range sinks {
		registry.Register(recipient, uuid.NewString(), sink)
	}

	intent := domain.SendIntent{
		SenderID:    uuid.NewString(),
		RecipientID: recipient,
		Content:     "multi device",
		ReceivedAt:  time.Now().UTC(),
	}
	messages.EXPECT().
		StoreMessage(gomock.Any(), intent.SenderID, recipient, intent.Content).
		Return(persistedMessage(intent), nil)

	// When the intent is routed
	message, err := router.Route(context.Background(), intent)
	req.NoError(err)

	// Then every device received the same persisted record
	for _, sink := range sinks {
		received := sink.Received()
		req.Len(received, 1)
		req.Equal(message, received[0])
	}
}

func TestRoute_DeadConnection_DoesNotAffectOthers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router, messages := newTestRouter(t, registry)
	recipient := uuid.NewString()

	dead := &recordingSink{fail: true}
	alive := &recordingSink{}
	registry.Register(recipient, uuid.NewString(), dead)
	registry.Register(recipient, uuid.NewString(), alive)

	intent := domain.SendIntent{
		SenderID:    uuid.NewString(),
		RecipientID: recipient,
		Content:     "still delivered",
		ReceivedAt:  time.Now().UTC(),
	}
	messages.EXPECT().
		StoreMessage(gomock.Any(), intent.SenderID, recipient, intent.Content).
		Return(persistedMessage(intent), nil)

	// When one of the two connections is dead
	message, err := router.Route(context.Background(), intent)

	// Then the route still succeeds and the live connection got its copy
	req.NoError(err)
	req.Equal([]domain.Message{message}, alive.Received())
	req.Empty(dead.Received())
}

func TestRoute_Validation_NoWriteNoPush(t *testing.T) {
	req := require.New(t)
	sender := uuid.NewString()

	tests := []struct {
		name    string
		intent  domain.SendIntent
		wantErr error
	}{
		{"Empty recipient", domain.SendIntent{SenderID: sender, Content: "hi"}, errors.ErrRecipientRequired},
		{"Malformed recipient", domain.SendIntent{SenderID: sender, RecipientID: "not-a-uuid", Content: "hi"}, errors.ErrRecipientInvalid},
		{"Oversized content", domain.SendIntent{SenderID: sender, RecipientID: uuid.NewString(), Content: bigContent(2048)}, errors.ErrContentTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			// The store mock has no expectations: any write would fail the test
			router, _ := newTestRouter(t, registry)

			_, err := router.Route(context.Background(), tt.intent)
			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestRoute_StoreUnavailable_NothingPushed(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router, messages := newTestRouter(t, registry)
	recipient := uuid.NewString()

	// Given the recipient is online
	sink := &recordingSink{}
	registry.Register(recipient, uuid.NewString(), sink)

	intent := domain.SendIntent{
		SenderID:    uuid.NewString(),
		RecipientID: recipient,
		Content:     "will not arrive",
		ReceivedAt:  time.Now().UTC(),
	}

	// And the store is unavailable
	messages.EXPECT().
		StoreMessage(gomock.Any(), intent.SenderID, recipient, intent.Content).
		Return(domain.Message{}, fmt.Errorf("%w: backend down", errors.ErrStoreUnavailable))

	// When the intent is routed
	_, err := router.Route(context.Background(), intent)

	// Then the error propagates and no connection received anything
	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Empty(sink.Received())
}

func TestRoute_PerSenderOrder_IsPreserved(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	router, messages := newTestRouter(t, registry)
	recipient := uuid.NewString()
	sender := uuid.NewString()

	sink := &recordingSink{}
	registry.Register(recipient, uuid.NewString(), sink)

	// Route is called synchronously per connection: sequential intents on
	// one sender stream must arrive in the order they were submitted.
	const total = 20
	for i := 0; i < total; i++ {
		content := fmt.Sprintf("message %02d", i)
		intent := domain.SendIntent{
			SenderID:    sender,
			RecipientID: recipient,
			Content:     content,
			ReceivedAt:  time.Now().UTC(),
		}
		messages.EXPECT().
			StoreMessage(gomock.Any(), sender, recipient, content).
			Return(persistedMessage(intent), nil)

		_, err := router.Route(context.Background(), intent)
		req.NoError(err)
	}

	received := sink.Received()
	req.Len(received, total)
	for i, message := range received {
		req.Equal(fmt.Sprintf("message %02d", i), message.Content)
	}
}

func bigContent(size int) string {
	bytes := make([]byte, size)
	for i := range bytes {
		bytes[i] = 'a'
	}
	return string(bytes)
}
