package domain

import (
	"time"

	"github.com/google/uuid"
)

// SendCommand is an intent to deliver a message to another user. The chat is
// resolved (or created) from the sender/recipient pair.
type SendCommand struct {
	SenderID    string
	RecipientID string
	Text        string
	CreatedAt   time.Time
}

// FetchCommand is an intent to read a chat's full transcript. Fetching is
// what triggers the seen transition for the requester's counterpart messages.
type FetchCommand struct {
	ChatID      uuid.UUID
	RequesterID string
}

// TypingCommand is an ephemeral composing signal scoped to a chat. Nothing
// about it is ever persisted.
type TypingCommand struct {
	ChatID uuid.UUID
	UserID string
	Active bool
}
