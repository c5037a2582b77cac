package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whisper/domain/event"
)

type stubSink struct {
	name string
}

func (s *stubSink) Consume(_ context.Context, _ event.DomainEvent) error {
	return nil
}

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	connID := uuid.NewString()
	sink := &stubSink{name: "alice"}

	// Given nobody is online
	req.Empty(registry.Online())

	// When alice identifies
	registry.Register("alice", connID, sink)

	// Then she is online through exactly that connection
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(connID, got)

	gotSink, ok := registry.Sink("alice")
	req.True(ok)
	req.Same(sink, gotSink)

	req.Equal([]string{"alice"}, registry.Online())
}

func TestRegistry_Register_Last_Connect_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	conn1 := uuid.NewString()
	conn2 := uuid.NewString()

	registry.Register("alice", conn1, &stubSink{name: "first"})
	registry.Register("alice", conn2, &stubSink{name: "second"})

	// The new connection replaced the old mapping
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(conn2, got)

	// Unregistering the stale connection is a no-op
	registry.Unregister(conn1)
	got, ok = registry.Lookup("alice")
	req.True(ok)
	req.Equal(conn2, got)
	req.Equal([]string{"alice"}, registry.Online())
}

func TestRegistry_Unregister_Unknown_Connection_Is_Silent(t *testing.T) {
	registry := NewRegistry(slog.Default())

	// Disconnect before identification must not error or notify
	fired := false
	registry.OnPresenceChange(func([]string) { fired = true })
	registry.Unregister(uuid.NewString())

	require.False(t, fired)
	require.Empty(t, registry.Online())
}

func TestRegistry_Unregister_Takes_User_Offline(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	connID := uuid.NewString()

	registry.Register("alice", connID, &stubSink{})
	registry.Unregister(connID)

	_, ok := registry.Lookup("alice")
	req.False(ok)
	req.Empty(registry.Online())
}

func TestRegistry_Presence_Change_Notifications(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	var snapshots [][]string
	registry.OnPresenceChange(func(online []string) {
		snapshots = append(snapshots, online)
	})

	connAlice := uuid.NewString()
	connBob := uuid.NewString()
	registry.Register("alice", connAlice, &stubSink{})
	registry.Register("bob", connBob, &stubSink{})
	registry.Unregister(connAlice)

	req.Len(snapshots, 3)
	req.Equal([]string{"alice"}, snapshots[0])
	req.Equal([]string{"alice", "bob"}, snapshots[1])
	req.Equal([]string{"bob"}, snapshots[2])
}

func TestRegistry_Notifications_Follow_Mutation_Order(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	// Notifier runs under the registry lock, so appends need no guard and
	// snapshots arrive in mutation order even under concurrent churn.
	var snapshots [][]string
	registry.OnPresenceChange(func(online []string) {
		snapshots = append(snapshots, online)
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%02d", i)
			connID := uuid.NewString()
			registry.Register(userID, connID, &stubSink{})
			if i%2 == 0 {
				registry.Unregister(connID)
			}
		}(i)
	}
	wg.Wait()

	// The last published snapshot is never stale: it matches the final set.
	req.NotEmpty(snapshots)
	req.Equal(registry.Online(), snapshots[len(snapshots)-1])
}

func TestRegistry_Join_And_Members(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	chatID := uuid.New()
	connAlice := uuid.NewString()
	connBob := uuid.NewString()

	registry.Register("alice", connAlice, &stubSink{})
	registry.Register("bob", connBob, &stubSink{})

	// Joining before identifying is ignored
	registry.Join(uuid.NewString(), chatID)
	req.Empty(registry.Members(chatID))

	registry.Join(connAlice, chatID)
	registry.Join(connBob, chatID)
	req.Equal([]string{"alice", "bob"}, registry.Members(chatID))

	// Membership dies with the connection
	registry.Unregister(connBob)
	req.Equal([]string{"alice"}, registry.Members(chatID))

	registry.Unregister(connAlice)
	req.Empty(registry.Members(chatID))
}
