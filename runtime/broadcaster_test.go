package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
	"whisper/domain"
	"whisper/domain/event"
	"whisper/mocks"
	"whisper/observability"
	"whisper/presence"
	"whisper/sink"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func startBroadcaster(t *testing.T, b *Broadcaster) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Run(ctx) }()
}

func drain(t *testing.T, s *sink.ConnSink) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-s.Events:
		return evt
	case <-time.After(1 * time.Second):
		t.Fatal("expected an event, got none")
		return nil
	}
}

func TestBroadcaster_MessageReachesRecipientOnly(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()

	aliceSink := sink.NewConnSink(log, 8)
	bobSink := sink.NewConnSink(log, 8)
	registry.Register("alice", "conn-a", aliceSink)
	registry.Register("bob", "conn-b", bobSink)

	b := NewBroadcaster(log, registry, monitoring, 16)
	startBroadcaster(t, b)

	msg, err := domain.NewMessage(uuid.New(), "alice", "hello bob", time.Now())
	req.NoError(err)

	b.Publish(event.MessageSent{Message: msg, RecipientID: "bob"})

	got := drain(t, bobSink)
	sent, ok := got.(event.MessageSent)
	req.True(ok)
	req.Equal("hello bob", sent.Message.Text)

	// The sender's connection gets nothing
	select {
	case evt := <-aliceSink.Events:
		req.Failf("unexpected event", "sender received %s", evt.EventName())
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_OfflineRecipientIsDropped(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()

	b := NewBroadcaster(log, registry, monitoring, 16)
	startBroadcaster(t, b)

	msg, err := domain.NewMessage(uuid.New(), "alice", "anyone there", time.Now())
	req.NoError(err)

	b.Publish(event.MessageSent{Message: msg, RecipientID: "ghost"})

	req.Eventually(func() bool {
		return monitoring.Snapshot().Dropped == 1
	}, time.Second, 10*time.Millisecond)
	req.Zero(monitoring.Snapshot().Delivered)
}

func TestBroadcaster_TypingScopedToRoomMinusOriginator(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()

	chatID := uuid.New()
	aliceSink := sink.NewConnSink(log, 8)
	bobSink := sink.NewConnSink(log, 8)
	carolSink := sink.NewConnSink(log, 8)
	registry.Register("alice", "conn-a", aliceSink)
	registry.Register("bob", "conn-b", bobSink)
	registry.Register("carol", "conn-c", carolSink)
	registry.Join("conn-a", chatID)
	registry.Join("conn-b", chatID)
	// carol is online but never joined the chat

	b := NewBroadcaster(log, registry, monitoring, 16)
	startBroadcaster(t, b)

	b.Publish(event.TypingStarted{ChatID: chatID, UserID: "alice"})

	got := drain(t, bobSink)
	req.Equal(event.NameTyping, got.EventName())

	select {
	case <-aliceSink.Events:
		req.Fail("originator should not receive its own typing event")
	case <-carolSink.Events:
		req.Fail("typing must stay scoped to the chat's members")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_SeenNotifiesSendersNotReader(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()

	aliceSink := sink.NewConnSink(log, 8)
	bobSink := sink.NewConnSink(log, 8)
	registry.Register("alice", "conn-a", aliceSink)
	registry.Register("bob", "conn-b", bobSink)

	b := NewBroadcaster(log, registry, monitoring, 16)
	startBroadcaster(t, b)

	chatID := uuid.New()
	b.Publish(event.ChatSeen{ChatID: chatID, ReaderID: "bob", SenderIDs: []string{"alice", "bob"}})

	got := drain(t, aliceSink)
	seen, ok := got.(event.ChatSeen)
	req.True(ok)
	req.Equal("bob", seen.ReaderID)

	// The reader is excluded even when listed among senders
	select {
	case <-bobSink.Events:
		req.Fail("reader should not be notified of its own fetch")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_PresenceGoesToEveryoneOnline(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()

	aliceSink := sink.NewConnSink(log, 8)
	bobSink := sink.NewConnSink(log, 8)
	registry.Register("alice", "conn-a", aliceSink)
	registry.Register("bob", "conn-b", bobSink)

	b := NewBroadcaster(log, registry, monitoring, 16)
	startBroadcaster(t, b)

	b.Publish(event.PresenceChanged{Online: []string{"alice", "bob"}})

	for _, s := range []*sink.ConnSink{aliceSink, bobSink} {
		got := drain(t, s)
		req.Equal(event.NameOnlineUsers, got.EventName())
	}
}

func TestBroadcaster_PermanentSinksSeeEveryEvent(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := presence.NewRegistry(log)
	monitoring := observability.NewMonitoring()
	permanent := mocks.NewMockEventSink(ctrl)

	done := make(chan struct{})
	count := 0
	permanent.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, evt event.DomainEvent) error {
			count++
			if count == 2 {
				close(done)
			}
			return nil
		}).Times(2)

	b := NewBroadcaster(log, registry, monitoring, 16)
	b.Add(permanent)
	startBroadcaster(t, b)

	msg, err := domain.NewMessage(uuid.New(), "alice", "indexed", time.Now())
	req.NoError(err)
	b.Publish(event.MessageSent{Message: msg, RecipientID: "bob"})
	b.Publish(event.TypingStarted{ChatID: uuid.New(), UserID: "alice"})

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		req.Fail("permanent sink did not observe every event")
	}
}
