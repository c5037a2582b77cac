//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"whisper/domain/event"
)

type WorkerName string

// Worker doesn't protect itself.
// Supervision, restarts and panic recovery belong to the Supervisor.
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
// This is used for logging and supervision purposes during worker lifecycle
// events, avoiding the need for manual naming in the Worker interface.
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

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IPresenceRegistry maps each online user to exactly one live connection.
// Entries are process-lifetime scoped and rebuilt from zero on restart.
type IPresenceRegistry interface {
	Register(userID, connID string, sink EventSink)
	Lookup(userID string) (string, bool)
	Sink(userID string) (EventSink, bool)
	Unregister(connID string)
	Online() []string
	Join(connID string, chatID uuid.UUID)
	Members(chatID uuid.UUID) []string
}

// IBroadcaster accepts events for best-effort delivery to live connections.
// Publish never blocks the caller.
type IBroadcaster interface {
	Publish(e event.DomainEvent)
}
