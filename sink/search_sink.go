package sink

import (
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"whisper/domain/event"
	"whisper/repositories"
)

// SearchSink feeds persisted messages into the full-text index. Indexing is
// asynchronous and best-effort: a failed index entry degrades search only,
// never the transcript itself.
type SearchSink struct {
	index repositories.ISearchIndex
	log   *slog.Logger
}

func NewSearchSink(index repositories.ISearchIndex, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageSent)
	if !ok {
		return nil
	}

	info := whatlanggo.Detect(evt.Message.Text)
	if err := s.index.Index(evt.Message, info.Lang.Iso6391()); err != nil {
		s.log.Warn("failed to index message",
			"message_id", evt.Message.ID,
			"error", err)
	}
	return nil
}
