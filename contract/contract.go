//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"courier/domain"
)

// EventSink is one live connection's delivery endpoint. Consume must not
// block beyond the given context; a full buffer or a dead transport is
// reported as an error and handled by the caller.
type EventSink interface {
	Consume(ctx context.Context, msg domain.Message) error
}

// IRegistry is the session registry: the single shared mutable structure of
// the system. All methods are safe for concurrent use and a lookup never
// observes a half-updated set.
type IRegistry interface {
	Register(identity, connectionID string, sink EventSink)
	Deregister(identity, connectionID string)
	ConnectionsFor(identity string) []string
	SinksFor(identity string) []EventSink
	Size() int
}

// IMessageRepository persists messages durably and returns the canonical
// record with the server-assigned id and timestamp. Either the message is
// persisted and returned, or nothing is written.
type IMessageRepository interface {
	StoreMessage(ctx context.Context, sender, recipient, content string) (domain.Message, error)
	CountAll() (int, error)
}

// IRouter accepts one inbound send intent from an authenticated connection.
type IRouter interface {
	Route(ctx context.Context, intent domain.SendIntent) (domain.Message, error)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
