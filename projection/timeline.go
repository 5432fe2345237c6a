// Package projection builds read models from stored messages.
// Handles ordering, deduplication, and per-conversation grouping.
// It never writes back to the store.
package projection

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"courier/domain"
)

// Conversation is one sender's thread inside a recipient's inbox, oldest
// message first.
type Conversation struct {
	SenderID string
	Messages []domain.Message
}

// Inbox is the per-recipient view over the stored messages.
type Inbox struct {
	RecipientID   string
	Conversations []Conversation
}

// BuildInbox folds a raw message slice into an inbox for one recipient:
// duplicates (same message ID) collapse to one record, messages are grouped
// per sender and each conversation is ordered by creation time. Conversations
// are listed most recently active first.
func BuildInbox(recipientID string, messages []domain.Message) Inbox {
	owned := lo.Filter(messages, func(message domain.Message, _ int) bool {
		return message.RecipientID == recipientID
	})
	owned = lo.UniqBy(owned, func(message domain.Message) string {
		return message.ID.String()
	})

	bySender := lo.GroupBy(owned, func(message domain.Message) string {
		return message.SenderID
	})

	conversations := lo.MapToSlice(bySender, func(senderID string, thread []domain.Message) Conversation {
		sort.Slice(thread, func(i, j int) bool {
			return thread[i].CreatedAt.Before(thread[j].CreatedAt)
		})
		return Conversation{SenderID: senderID, Messages: thread}
	})
	sort.Slice(conversations, func(i, j int) bool {
		return lastActivity(conversations[i]).After(lastActivity(conversations[j]))
	})

	return Inbox{RecipientID: recipientID, Conversations: conversations}
}

// TotalMessages counts the messages across every conversation.
func (i Inbox) TotalMessages() int {
	return lo.SumBy(i.Conversations, func(c Conversation) int {
		return len(c.Messages)
	})
}

func lastActivity(c Conversation) time.Time {
	return c.Messages[len(c.Messages)-1].CreatedAt
}
