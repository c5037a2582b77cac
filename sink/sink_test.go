package sink

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"whisper/domain"
	"whisper/domain/event"
	"whisper/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnSink_Buffers_Events(t *testing.T) {
	req := require.New(t)
	s := NewConnSink(discardLogger(), 2)
	ctx := context.Background()

	evt := event.PresenceChanged{Online: []string{"alice"}}
	req.NoError(s.Consume(ctx, evt))

	select {
	case got := <-s.Events:
		req.Equal(evt, got)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestConnSink_Drops_When_Full(t *testing.T) {
	req := require.New(t)
	s := NewConnSink(discardLogger(), 1)
	ctx := context.Background()

	req.NoError(s.Consume(ctx, event.PresenceChanged{Online: []string{"alice"}}))
	// Buffer is full now; a slow consumer loses events, never blocks the caller
	req.NoError(s.Consume(ctx, event.PresenceChanged{Online: []string{"alice", "bob"}}))
	req.Len(s.Events, 1)
}

type recordingIndex struct {
	messages []domain.Message
	langs    []string
}

func (r *recordingIndex) Index(message domain.Message, lang string) error {
	r.messages = append(r.messages, message)
	r.langs = append(r.langs, lang)
	return nil
}

func (r *recordingIndex) Search(context.Context, uuid.UUID, string) ([]repositories.SearchHit, error) {
	return nil, nil
}

func (r *recordingIndex) Close() error { return nil }

func TestSearchSink_Indexes_Message_Events_Only(t *testing.T) {
	req := require.New(t)
	index := &recordingIndex{}
	s := NewSearchSink(index, discardLogger())
	ctx := context.Background()

	msg, err := domain.NewMessage(uuid.New(), "alice", "bonjour tout le monde", time.Now().UTC())
	req.NoError(err)

	req.NoError(s.Consume(ctx, event.MessageSent{Message: msg, RecipientID: "bob"}))
	req.NoError(s.Consume(ctx, event.PresenceChanged{Online: []string{"alice"}}))

	req.Len(index.messages, 1)
	req.Equal(msg.ID, index.messages[0].ID)
	req.NotEmpty(index.langs[0])
}
