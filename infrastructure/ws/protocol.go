package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"whisper/domain"
	"whisper/domain/event"
)

// Envelope is the wire frame for both directions: a discriminant event name
// plus a payload whose shape depends on it.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-to-server event names. Server-to-client names live in the event
// package since they are the domain events themselves.
const (
	EventIdentify = "identify"
	EventJoin     = "joinChat"
)

type IdentifyPayload struct {
	Token string `json:"token"`
}

type JoinPayload struct {
	ChatID uuid.UUID `json:"chat_id"`
}

type TypingPayload struct {
	ChatID uuid.UUID `json:"chat_id"`
}

// MessageDTO is the JSON shape of a message pushed over the socket.
type MessageDTO struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageDTO(m domain.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		State:     string(m.State),
		CreatedAt: m.CreatedAt,
	}
}

type seenPayload struct {
	ChatID   uuid.UUID `json:"chat_id"`
	ReaderID string    `json:"reader_id"`
}

type typingNotice struct {
	ChatID uuid.UUID `json:"chat_id"`
	UserID string    `json:"user_id"`
}

type onlinePayload struct {
	Online []string `json:"online"`
}

// NewEnvelope wraps an arbitrary payload under an event name. Used by
// clients for the inbound direction.
func NewEnvelope(eventName string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: eventName, Data: data}, nil
}

// EncodeEvent projects a domain event onto its wire envelope.
func EncodeEvent(e event.DomainEvent) (Envelope, error) {
	var payload any
	switch evt := e.(type) {
	case event.MessageSent:
		payload = toMessageDTO(evt.Message)
	case event.ChatSeen:
		payload = seenPayload{ChatID: evt.ChatID, ReaderID: evt.ReaderID}
	case event.TypingStarted:
		payload = typingNotice{ChatID: evt.ChatID, UserID: evt.UserID}
	case event.TypingStopped:
		payload = typingNotice{ChatID: evt.ChatID, UserID: evt.UserID}
	case event.PresenceChanged:
		payload = onlinePayload{Online: evt.Online}
	default:
		return Envelope{}, fmt.Errorf("no wire encoding for event %T", e)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: e.EventName(), Data: data}, nil
}
