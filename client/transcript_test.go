package client

import (
	"testing"
	"time"
	"whisper/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func serverMessage(chatID uuid.UUID, senderID, text string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		State:     domain.StateSent,
		CreatedAt: time.Now(),
	}
}

func TestTranscript_OptimisticSendConfirm(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	tr := NewTranscript("alice")
	tr.Activate(chatID, nil)

	localID := tr.BeginSend(chatID, "hello", time.Now())

	entries := tr.Entries()
	req.Len(entries, 1)
	req.Equal(StatusPending, entries[0].Status)
	req.Equal(domain.StatePending, entries[0].Message.State)

	// Server acknowledges with its own id; the entry is swapped in place.
	acked := serverMessage(chatID, "alice", "hello")
	req.True(tr.Confirm(localID, acked))

	entries = tr.Entries()
	req.Len(entries, 1)
	req.Equal(StatusConfirmed, entries[0].Status)
	req.Equal(acked.ID, entries[0].Message.ID)
	req.Equal(localID, entries[0].LocalID)

	// A second confirm for the same id is a no-op.
	req.False(tr.Confirm(localID, acked))
}

func TestTranscript_FailedSendStaysVisible(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	tr := NewTranscript("alice")
	tr.Activate(chatID, nil)

	localID := tr.BeginSend(chatID, "doomed", time.Now())
	req.True(tr.Fail(localID))

	entries := tr.Entries()
	req.Len(entries, 1)
	req.Equal(StatusFailed, entries[0].Status)
	req.Equal(domain.StateFailed, entries[0].Message.State)

	// Failed entries cannot be confirmed afterwards.
	req.False(tr.Confirm(localID, serverMessage(chatID, "alice", "doomed")))
}

func TestTranscript_IncomingForActiveChatAppends(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	tr := NewTranscript("alice")
	tr.Activate(chatID, nil)

	tr.ApplyIncoming(serverMessage(chatID, "bob", "hi there"))

	entries := tr.Entries()
	req.Len(entries, 1)
	req.Equal("bob", entries[0].Message.SenderID)
	req.Empty(tr.Summaries())
}

func TestTranscript_IncomingForOtherChatBumpsSummary(t *testing.T) {
	req := require.New(t)
	active := uuid.New()
	other := uuid.New()
	tr := NewTranscript("alice")
	tr.Activate(active, nil)

	tr.ApplyIncoming(serverMessage(other, "carol", "ping"))
	tr.ApplyIncoming(serverMessage(other, "carol", "ping again"))

	req.Empty(tr.Entries())
	summaries := tr.Summaries()
	req.Len(summaries, 1)
	req.Equal(2, summaries[0].Unread)
	req.Equal("ping again", summaries[0].LastText)

	// Opening that chat clears the unread counter.
	tr.Activate(other, nil)
	summaries = tr.Summaries()
	req.Zero(summaries[0].Unread)
}

func TestTranscript_ApplySeenFlipsOwnMessagesOnly(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	tr := NewTranscript("alice")

	mine := serverMessage(chatID, "alice", "mine")
	theirs := serverMessage(chatID, "bob", "theirs")
	tr.Activate(chatID, []domain.Message{mine, theirs})

	tr.ApplySeen(chatID)

	entries := tr.Entries()
	req.Equal(domain.StateSeen, entries[0].Message.State)
	req.Equal(domain.StateSent, entries[1].Message.State)

	// Idempotent: nothing changes on replay.
	tr.ApplySeen(chatID)
	req.Equal(domain.StateSeen, tr.Entries()[0].Message.State)

	// Seen for a non-active chat is ignored.
	tr.ApplySeen(uuid.New())
}

func TestTranscript_ActivatePreservesPending(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()
	tr := NewTranscript("alice")
	tr.Activate(chatID, nil)

	localID := tr.BeginSend(chatID, "in flight", time.Now())

	// A reconciling fetch lands while the send is still pending.
	fetched := []domain.Message{serverMessage(chatID, "bob", "earlier")}
	tr.Activate(chatID, fetched)

	entries := tr.Entries()
	req.Len(entries, 2)
	req.Equal("earlier", entries[0].Message.Text)
	req.Equal(localID, entries[1].LocalID)
	req.Equal(StatusPending, entries[1].Status)

	// Switching to another chat drops them; the fetch there is authoritative.
	tr.Activate(uuid.New(), nil)
	req.Empty(tr.Entries())
}

func TestTypingTracker_SelfExpiry(t *testing.T) {
	req := require.New(t)
	chatID := uuid.New()

	tt := NewTypingTracker()
	current := time.Now()
	tt.now = func() time.Time { return current }

	tt.Start(chatID, "bob")
	tt.Start(chatID, "carol")
	req.Equal([]string{"bob", "carol"}, tt.Typing(chatID))

	tt.Stop(chatID, "carol")
	req.Equal([]string{"bob"}, tt.Typing(chatID))

	// Without a refresh, the notice expires on its own.
	current = current.Add(typingTTL + time.Second)
	req.Empty(tt.Typing(chatID))

	req.Empty(tt.Typing(uuid.New()))
}
