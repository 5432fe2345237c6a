// Command inspect dumps the stored messages as a table. It opens the store
// in read-only viewer mode, so it can run next to a live server. With
// INSPECT_RECIPIENT set it renders that recipient's inbox grouped per
// sender instead of the raw store order.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"courier/domain"
	"courier/projection"
	"courier/repositories"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	Limit          int    `env:"INSPECT_LIMIT,default=100"`
	Recipient      string `env:"INSPECT_RECIPIENT"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in read-only mode.
	// BypassLockGuard allows opening while the server holds the lock.
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(options)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Walk the message prefix
	messages, err := collect(db, config.Limit)
	if err != nil {
		log.Fatalf("Failed to read messages: %v", err)
	}

	if config.Recipient != "" {
		renderInbox(projection.BuildInbox(config.Recipient, messages))
	} else {
		renderAll(messages)
	}

	if len(messages) == config.Limit {
		color.Yellow.Println("Limit reached, raise INSPECT_LIMIT to see more")
	}
	fmt.Println()
}

func collect(db *badger.DB, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("msg:")
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				message, err := repositories.ToMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func renderAll(messages []domain.Message) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Sender", "Recipient", "At", "Content"})
	for _, message := range messages {
		table.Append([]string{
			shorten(message.ID.String()),
			shorten(message.SenderID),
			shorten(message.RecipientID),
			message.CreatedAt.Format(time.RFC3339),
			message.Content,
		})
	}

	color.Bold.Printf("Stored messages (%d shown)\n", len(messages))
	table.Render()
}

func renderInbox(inbox projection.Inbox) {
	color.Bold.Printf("Inbox for %s (%d messages, %d conversations)\n",
		shorten(inbox.RecipientID), inbox.TotalMessages(), len(inbox.Conversations))

	for _, conversation := range inbox.Conversations {
		color.Green.Printf("\nFrom %s\n", shorten(conversation.SenderID))
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "At", "Content"})
		for _, message := range conversation.Messages {
			table.Append([]string{
				shorten(message.ID.String()),
				message.CreatedAt.Format(time.RFC3339),
				message.Content,
			})
		}
		table.Render()
	}
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
