//go:generate go run go.uber.org/mock/mockgen -destination=../mocks/mock_services.go -package=mocks whisper/services IChatService,IAuthService
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"whisper/contract"
	"whisper/domain"
	"whisper/domain/event"
	"whisper/errors"
	"whisper/moderation"
	"whisper/observability"
	"whisper/repositories"
)

// ChatSummary is one row of a user's chat list: the counterpart plus the
// latest message preview, ordered by activity.
type ChatSummary struct {
	ChatID         uuid.UUID
	Counterpart    string
	LastText       string
	LastSenderID   string
	LastActivityAt time.Time
}

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendCommand) (domain.Message, error)
	FetchMessages(ctx context.Context, cmd domain.FetchCommand) ([]domain.Message, error)
	ListChats(ctx context.Context, userID string) ([]ChatSummary, error)
	SearchMessages(ctx context.Context, chatID uuid.UUID, requesterID, query string) ([]repositories.SearchHit, error)
	Typing(cmd domain.TypingCommand)
}

// ChatService is the write path of the messaging core. Persistence decides
// the outcome; broadcasting is triggered only after the store accepted the
// write, so a delivered event always refers to durable state.
type ChatService struct {
	log         *slog.Logger
	chats       repositories.IChatRepository
	messages    repositories.IMessageRepository
	search      repositories.ISearchIndex
	filter      *moderation.Filter
	broadcaster contract.IBroadcaster
	monitoring  *observability.Monitoring

	// locks serializes append+touch per chat so transcript order matches
	// badger key order even under concurrent senders.
	locks *keyedMutex
}

func NewChatService(
	log *slog.Logger,
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	search repositories.ISearchIndex,
	filter *moderation.Filter,
	broadcaster contract.IBroadcaster,
	monitoring *observability.Monitoring,
) *ChatService {
	return &ChatService{
		log:         log,
		chats:       chats,
		messages:    messages,
		search:      search,
		filter:      filter,
		broadcaster: broadcaster,
		monitoring:  monitoring,
		locks:       newKeyedMutex(),
	}
}

// SendMessage resolves (or creates) the chat for the sender/recipient pair,
// masks forbidden terms, persists the message and only then hands it to the
// broadcaster. The returned message carries the server-assigned id and the
// stored (possibly masked) text.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendCommand) (domain.Message, error) {
	// Rejecting here keeps an invalid send from creating an empty chat.
	if cmd.Text == "" {
		return domain.Message{}, errors.ErrEmptyText
	}

	at := cmd.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	chat, created, err := s.chats.FindOrCreate(cmd.SenderID, cmd.RecipientID, at)
	if err != nil {
		return domain.Message{}, err
	}
	if created {
		s.log.Info("chat created", "chat_id", chat.ID, "pair", chat.ParticipantA+"|"+chat.ParticipantB)
	}

	text, matched := s.filter.Mask(cmd.Text)
	if len(matched) > 0 {
		s.log.Info("message masked", "chat_id", chat.ID, "terms", len(matched))
	}

	message, err := domain.NewMessage(chat.ID, cmd.SenderID, text, at)
	if err != nil {
		return domain.Message{}, err
	}

	unlock := s.locks.Lock(chat.ID)
	defer unlock()

	if err := s.messages.Append(message); err != nil {
		return domain.Message{}, err
	}
	if err := s.chats.TouchLatest(chat.ID, message.Text, message.SenderID, message.CreatedAt); err != nil {
		return domain.Message{}, err
	}
	s.monitoring.IncrMessagesStored()

	s.broadcaster.Publish(event.MessageSent{
		Message:     message,
		RecipientID: chat.Counterpart(cmd.SenderID),
	})
	return message, nil
}

// FetchMessages returns the chat's full transcript for a participant. The
// fetch itself is the read acknowledgement: every counterpart message still
// in sent state flips to seen, and the original senders are notified once
// per chat, not once per message.
func (s *ChatService) FetchMessages(ctx context.Context, cmd domain.FetchCommand) ([]domain.Message, error) {
	chat, err := s.chats.Get(cmd.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(cmd.RequesterID) {
		return nil, errors.ErrNotParticipant
	}

	senders, err := s.messages.MarkSeen(cmd.ChatID, cmd.RequesterID)
	if err != nil {
		return nil, err
	}

	transcript, err := s.messages.ListByChat(cmd.ChatID)
	if err != nil {
		return nil, err
	}

	if len(senders) > 0 {
		s.monitoring.IncrSeenFlips()
		s.broadcaster.Publish(event.ChatSeen{
			ChatID:    cmd.ChatID,
			ReaderID:  cmd.RequesterID,
			SenderIDs: senders,
		})
	}
	return transcript, nil
}

// ListChats returns the user's chats as summaries, most recent activity
// first. The ordering comes from the repository.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]ChatSummary, error) {
	chats, err := s.chats.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	return lo.Map(chats, func(c domain.Chat, _ int) ChatSummary {
		return ChatSummary{
			ChatID:         c.ID,
			Counterpart:    c.Counterpart(userID),
			LastText:       c.Latest.Text,
			LastSenderID:   c.Latest.SenderID,
			LastActivityAt: c.LastActivityAt,
		}
	}), nil
}

// SearchMessages runs a full-text query over one chat's history. Access is
// participant-gated the same way fetching is, but searching never flips
// seen state.
func (s *ChatService) SearchMessages(ctx context.Context, chatID uuid.UUID, requesterID, query string) ([]repositories.SearchHit, error) {
	chat, err := s.chats.Get(chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(requesterID) {
		return nil, errors.ErrNotParticipant
	}
	return s.search.Search(ctx, chatID, query)
}

// Typing forwards an ephemeral composing signal. No validation beyond the
// zero checks: a typing event for a chat the user never joined is simply
// delivered to nobody.
func (s *ChatService) Typing(cmd domain.TypingCommand) {
	if cmd.UserID == "" || cmd.ChatID == uuid.Nil {
		return
	}
	if cmd.Active {
		s.broadcaster.Publish(event.TypingStarted{ChatID: cmd.ChatID, UserID: cmd.UserID})
		return
	}
	s.broadcaster.Publish(event.TypingStopped{ChatID: cmd.ChatID, UserID: cmd.UserID})
}
