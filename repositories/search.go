package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"whisper/domain"
)

type ISearchIndex interface {
	Index(message domain.Message, lang string) error
	Search(ctx context.Context, chatID uuid.UUID, query string) ([]SearchHit, error)
	Close() error
}

// SearchHit is one full-text match inside a chat's history.
type SearchHit struct {
	MessageID string
	SenderID  string
	Text      string
	Lang      string
	CreatedAt time.Time
}

// SearchIndex is a Bluge-backed full-text index over message bodies. The
// index is a projection: Badger stays the source of truth, and a lost index
// entry only degrades search, never the transcript.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewSearchIndex(path string, log *slog.Logger, limit int) (*SearchIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &SearchIndex{writer: writer, log: log, limit: limit}, nil
}

func (s *SearchIndex) Index(message domain.Message, lang string) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("text", message.Text).StoreValue()).
		AddField(bluge.NewKeywordField("chat", message.ChatID.String()).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("lang", lang).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.CreatedAt).StoreValue())

	return s.writer.Update(doc.ID(), doc)
}

// Search matches the query against message bodies, scoped to a single chat
// via a mandatory term clause on the chat id.
func (s *SearchIndex) Search(ctx context.Context, chatID uuid.UUID, query string) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("failed to close index reader", "error", err)
		}
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(chatID.String()).SetField("chat")).
		AddMust(bluge.NewMatchQuery(query).SetField("text"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(s.limit, q))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var hit SearchHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "text":
				hit.Text = string(value)
			case "lang":
				hit.Lang = string(value)
			case "at":
				if at, err := bluge.DecodeDateTime(value); err == nil {
					hit.CreatedAt = at.UTC()
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *SearchIndex) Close() error {
	return s.writer.Close()
}
