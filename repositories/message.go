package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper/domain"
)

type IMessageRepository interface {
	Append(message domain.Message) error
	ListByChat(chatID uuid.UUID) ([]domain.Message, error)
	MarkSeen(chatID uuid.UUID, readerID string) ([]string, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// messageRecord is the stored shape of a Message.
type messageRecord struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// messageKey formats the storage key as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     land on the same nanosecond.
func messageKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		message.ChatID,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

func chatMessagesPrefix(chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", chatID))
}

func (m MessageRepository) Append(message domain.Message) error {
	data, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), data)
	})
}

// ListByChat retrieves all messages of a chat using a prefix scan. Thanks to
// the padded timestamp in the key, messages come back already ordered by
// creation time ascending.
func (m MessageRepository) ListByChat(chatID uuid.UUID) ([]domain.Message, error) {
	var records []messageRecord
	prefix := chatMessagesPrefix(chatID)

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record messageRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(records))
	for _, record := range records {
		message, err := toMessage(record)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// MarkSeen flips every message in the chat that was not authored by the
// reader and is still below seen. The whole flip is one transaction, and
// re-running it is a no-op: seen is terminal and never reverts. It returns
// the distinct authors whose messages changed state, so the caller can emit
// a single seen broadcast per chat.
//
// Both participants opening the chat at once makes the two flip
// transactions conflict (each one reads the full prefix the other writes
// into). Idempotence makes a plain retry safe.
func (m MessageRepository) MarkSeen(chatID uuid.UUID, readerID string) ([]string, error) {
	for {
		senders, err := m.markSeenOnce(chatID, readerID)
		if err == badger.ErrConflict {
			m.log.Debug("seen flip conflict, retrying", "chat_id", chatID)
			continue
		}
		return senders, err
	}
}

func (m MessageRepository) markSeenOnce(chatID uuid.UUID, readerID string) ([]string, error) {
	type pending struct {
		key  []byte
		data []byte
	}
	var senders []string
	prefix := chatMessagesPrefix(chatID)

	err := m.db.Update(func(txn *badger.Txn) error {
		// Collect first, write after: the iterator has to be released
		// before writing back into the same transaction.
		updates, err := func() ([]pending, error) {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			var collected []pending
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var record messageRecord
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &record)
				}); err != nil {
					return nil, err
				}
				if record.SenderID == readerID {
					continue
				}
				if domain.DeliveryState(record.State) != domain.StateSent {
					continue
				}

				record.State = string(domain.StateSeen)
				data, err := json.Marshal(record)
				if err != nil {
					return nil, err
				}
				collected = append(collected, pending{key: item.KeyCopy(nil), data: data})
				senders = append(senders, record.SenderID)
			}
			return collected, nil
		}()
		if err != nil {
			return err
		}

		for _, update := range updates {
			if err := txn.Set(update.key, update.data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(senders), nil
}

func fromMessage(message domain.Message) messageRecord {
	return messageRecord{
		ID:        message.ID.String(),
		ChatID:    message.ChatID.String(),
		SenderID:  message.SenderID,
		Text:      message.Text,
		State:     string(message.State),
		CreatedAt: message.CreatedAt,
	}
}

func toMessage(record messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Message{}, err
	}
	parsedChatID, err := uuid.Parse(record.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		ChatID:    parsedChatID,
		SenderID:  record.SenderID,
		Text:      record.Text,
		State:     domain.DeliveryState(record.State),
		CreatedAt: record.CreatedAt.UTC(),
	}, nil
}
