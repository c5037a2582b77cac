//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/mock_repositories.go -package=mocks whisper/repositories IChatRepository,IMessageRepository,IUserRepository,ISearchIndex
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"whisper/domain"
	whisperrors "whisper/errors"
)

type IChatRepository interface {
	FindOrCreate(userA, userB string, at time.Time) (domain.Chat, bool, error)
	Get(chatID uuid.UUID) (domain.Chat, error)
	ListForUser(userID string) ([]domain.Chat, error)
	TouchLatest(chatID uuid.UUID, text, senderID string, at time.Time) error
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) ChatRepository {
	return ChatRepository{db: db, log: log}
}

// chatRecord is the stored shape of a Chat.
type chatRecord struct {
	ID             string    `json:"id"`
	ParticipantA   string    `json:"participant_a"`
	ParticipantB   string    `json:"participant_b"`
	LatestText     string    `json:"latest_text"`
	LatestSenderID string    `json:"latest_sender_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

func chatKey(chatID string) []byte {
	return []byte("chat:" + chatID)
}

func pairKey(canonical string) []byte {
	return []byte("chatpair:" + canonical)
}

func userChatKey(userID, chatID string) []byte {
	return []byte(fmt.Sprintf("chatuser:%s:%s", userID, chatID))
}

// FindOrCreate looks a Chat up by its canonical participant pair and creates
// it if absent. Creation and the pair-key insert happen in one Badger
// transaction: when both participants race on the same pair, Badger's
// conflict detection fails one commit and that caller retries as a lookup.
// A check-then-create outside a transaction would silently produce duplicate
// chats; this must never be weakened.
func (r ChatRepository) FindOrCreate(userA, userB string, at time.Time) (domain.Chat, bool, error) {
	canonical, err := domain.PairKey(userA, userB)
	if err != nil {
		return domain.Chat{}, false, err
	}

	for {
		var chat domain.Chat
		created := false

		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(pairKey(canonical))
			if err == nil {
				var chatID string
				if err := item.Value(func(val []byte) error {
					chatID = string(val)
					return nil
				}); err != nil {
					return err
				}
				chat, err = getChat(txn, chatID)
				return err
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			chat, err = domain.NewChat(userA, userB, at)
			if err != nil {
				return err
			}
			created = true

			data, err := json.Marshal(fromChat(chat))
			if err != nil {
				return err
			}
			if err := txn.Set(chatKey(chat.ID.String()), data); err != nil {
				return err
			}
			if err := txn.Set(pairKey(canonical), []byte(chat.ID.String())); err != nil {
				return err
			}
			if err := txn.Set(userChatKey(chat.ParticipantA, chat.ID.String()), nil); err != nil {
				return err
			}
			return txn.Set(userChatKey(chat.ParticipantB, chat.ID.String()), nil)
		})

		if err == badger.ErrConflict {
			// Lost the creation race: the other participant committed first.
			// Fall back to a lookup instead of surfacing an error.
			r.log.Debug("chat creation conflict, retrying as lookup", "pair", canonical)
			continue
		}
		if err != nil {
			return domain.Chat{}, false, err
		}
		return chat, created, nil
	}
}

func (r ChatRepository) Get(chatID uuid.UUID) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		chat, err = getChat(txn, chatID.String())
		return err
	})
	return chat, err
}

// ListForUser returns every chat containing the user, ordered by
// last-activity time descending.
func (r ChatRepository) ListForUser(userID string) ([]domain.Chat, error) {
	var chats []domain.Chat
	prefix := []byte("chatuser:" + userID + ":")

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			chatID := strings.TrimPrefix(key, string(prefix))
			chat, err := getChat(txn, chatID)
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].LastActivityAt.After(chats[j].LastActivityAt)
	})
	return chats, nil
}

// TouchLatest refreshes the denormalized latest-message snapshot. Callers
// serialize per chat, so a read-modify-write transaction is sufficient.
func (r ChatRepository) TouchLatest(chatID uuid.UUID, text, senderID string, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		chat, err := getChat(txn, chatID.String())
		if err != nil {
			return err
		}
		chat.Latest = domain.LatestMessage{Text: text, SenderID: senderID}
		chat.LastActivityAt = at

		data, err := json.Marshal(fromChat(chat))
		if err != nil {
			return err
		}
		return txn.Set(chatKey(chat.ID.String()), data)
	})
}

func getChat(txn *badger.Txn, chatID string) (domain.Chat, error) {
	item, err := txn.Get(chatKey(chatID))
	if err == badger.ErrKeyNotFound {
		return domain.Chat{}, whisperrors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}

	var record chatRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	}); err != nil {
		return domain.Chat{}, err
	}
	return toChat(record)
}

func fromChat(chat domain.Chat) chatRecord {
	return chatRecord{
		ID:             chat.ID.String(),
		ParticipantA:   chat.ParticipantA,
		ParticipantB:   chat.ParticipantB,
		LatestText:     chat.Latest.Text,
		LatestSenderID: chat.Latest.SenderID,
		CreatedAt:      chat.CreatedAt,
		LastActivityAt: chat.LastActivityAt,
	}
}

func toChat(record chatRecord) (domain.Chat, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.Chat{}, err
	}
	return domain.Chat{
		ID:           parsedID,
		ParticipantA: record.ParticipantA,
		ParticipantB: record.ParticipantB,
		Latest: domain.LatestMessage{
			Text:     record.LatestText,
			SenderID: record.LatestSenderID,
		},
		CreatedAt:      record.CreatedAt,
		LastActivityAt: record.LastActivityAt,
	}, nil
}
