package test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"whisper/domain"
	"whisper/domain/event"
	"whisper/moderation"
	"whisper/observability"
	"whisper/presence"
	"whisper/repositories"
	"whisper/runtime"
	"whisper/services"
	"whisper/sink"
)

// Full stack with real storage, no transport: badger, bluge, filter,
// registry, broadcaster and service wired exactly like the server binary.
func Test_Scenario(t *testing.T) {
	ctx := t.Context()
	req := require.New(t)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	searchIndex, err := repositories.NewSearchIndex(t.TempDir(), log, 50)
	req.NoError(err)
	t.Cleanup(func() { _ = searchIndex.Close() })

	chatRepository := repositories.NewChatRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)

	filter, err := moderation.NewFilter([]string{"badger"}, '*', log)
	req.NoError(err)

	monitoring := observability.NewMonitoring()
	registry := presence.NewRegistry(log)
	broadcaster := runtime.NewBroadcaster(log, registry, monitoring, 100)
	broadcaster.Add(sink.NewSearchSink(searchIndex, log))
	go func() { _ = broadcaster.Run(ctx) }()

	svc := services.NewChatService(log, chatRepository, messageRepository,
		searchIndex, filter, broadcaster, monitoring)

	// 1. Two accounts.
	aliceID, err := userRepository.CreateUser("alice@example.com", "hash-a")
	req.NoError(err)
	bobID, err := userRepository.CreateUser("bob@example.com", "hash-b")
	req.NoError(err)

	// 2. Bob is online.
	bobSink := sink.NewConnSink(log, 10)
	registry.Register(bobID, "conn-bob", bobSink)

	// 3. Alice sends; a chat is created on the fly and the text is masked.
	sent, err := svc.SendMessage(ctx, domain.SendCommand{
		SenderID:    aliceID,
		RecipientID: bobID,
		Text:        "a wild badger appeared",
	})
	req.NoError(err)
	req.Equal("a wild ****** appeared", sent.Text)
	req.Equal(domain.StateSent, sent.State)

	// 4. Bob's connection received the push.
	select {
	case e := <-bobSink.Events:
		msg, ok := e.(event.MessageSent)
		req.True(ok)
		req.Equal(sent.ID, msg.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message pushed to recipient")
	}

	// 5. Alice comes online, then Bob opens the chat: the fetch flips
	// alice's message to seen and notifies her.
	aliceSink := sink.NewConnSink(log, 10)
	registry.Register(aliceID, "conn-alice", aliceSink)

	fetched, err := svc.FetchMessages(ctx, domain.FetchCommand{
		ChatID:      sent.ChatID,
		RequesterID: bobID,
	})
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(domain.StateSeen, fetched[0].State)

	waitFor(t, aliceSink, func(e event.DomainEvent) bool {
		seen, ok := e.(event.ChatSeen)
		return ok && seen.ChatID == sent.ChatID && seen.ReaderID == bobID
	})

	// 6. The seen state is durable.
	refetched, err := svc.FetchMessages(ctx, domain.FetchCommand{
		ChatID:      sent.ChatID,
		RequesterID: aliceID,
	})
	req.NoError(err)
	req.Equal(domain.StateSeen, refetched[0].State)

	// 7. The search sink indexed the masked text.
	req.Eventually(func() bool {
		hits, err := svc.SearchMessages(ctx, sent.ChatID, aliceID, "wild")
		return err == nil && len(hits) == 1
	}, 3*time.Second, 50*time.Millisecond)

	// 8. Chat listings reflect the latest activity on both sides.
	aliceChats, err := svc.ListChats(ctx, aliceID)
	req.NoError(err)
	req.Len(aliceChats, 1)
	req.Equal(bobID, aliceChats[0].Counterpart)
	req.Equal("a wild ****** appeared", aliceChats[0].LastText)

	bobChats, err := svc.ListChats(ctx, bobID)
	req.NoError(err)
	req.Len(bobChats, 1)
	req.Equal(aliceID, bobChats[0].Counterpart)

	// 9. Counters moved.
	stats := monitoring.Snapshot()
	req.Equal(uint64(1), stats.MessagesStored)
	req.Equal(uint64(1), stats.SeenFlips)
	req.GreaterOrEqual(stats.Delivered, uint64(1))
}

func waitFor(t *testing.T, s *sink.ConnSink, match func(event.DomainEvent) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-s.Events:
			if match(e) {
				return
			}
		case <-deadline:
			t.Fatal("expected event never arrived")
		}
	}
}
