// Package event defines the broadcast events pushed to live connections.
// Events are immutable values; the broadcaster resolves their audience
// through the presence registry.
package event

import (
	"github.com/google/uuid"

	"whisper/domain"
)

// Wire-level event names, shared by the server push path and the client.
const (
	NameNewMessage  = "newMessage"
	NameMessageSeen = "messageSeen"
	NameTyping      = "typing"
	NameStopTyping  = "stopTyping"
	NameOnlineUsers = "onlineUsers"
)

type DomainEvent interface {
	EventName() string
}

// MessageSent is addressed directly to the recipient's live connection.
// If the recipient is offline the event is dropped; they catch up on the
// next fetch.
type MessageSent struct {
	Message     domain.Message
	RecipientID string
}

func (MessageSent) EventName() string { return NameNewMessage }

// ChatSeen notifies the original sender(s) that the reader has opened the
// chat. One event per chat, never one per message.
type ChatSeen struct {
	ChatID    uuid.UUID
	ReaderID  string
	SenderIDs []string
}

func (ChatSeen) EventName() string { return NameMessageSeen }

// TypingStarted and TypingStopped are best-effort, lossy signals scoped to a
// chat room. Every joined participant except the originator receives them.
type TypingStarted struct {
	ChatID uuid.UUID
	UserID string
}

func (TypingStarted) EventName() string { return NameTyping }

type TypingStopped struct {
	ChatID uuid.UUID
	UserID string
}

func (TypingStopped) EventName() string { return NameStopTyping }

// PresenceChanged carries the full set of online user ids and is broadcast
// to every live connection, unscoped.
type PresenceChanged struct {
	Online []string
}

func (PresenceChanged) EventName() string { return NameOnlineUsers }
