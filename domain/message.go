// Package domain contains core concepts of the messaging system.
// This file defines Message entities and the delivery state machine.
// Messages are immutable once created, except for the seen transition.
package domain

import (
	"time"

	"github.com/google/uuid"

	"whisper/errors"
)

// DeliveryState is the lifecycle of a message from creation to acknowledged
// read. Pending and Failed exist only in the client's optimistic layer and
// are never persisted. The persisted machine is Sent -> Seen, one-directional.
type DeliveryState string

const (
	StatePending DeliveryState = "pending"
	StateSent    DeliveryState = "sent"
	StateSeen    DeliveryState = "seen"
	StateFailed  DeliveryState = "failed"
)

// CanAdvanceTo reports whether a transition is legal. Seen is terminal.
func (s DeliveryState) CanAdvanceTo(next DeliveryState) bool {
	switch s {
	case StatePending:
		return next == StateSent || next == StateFailed
	case StateSent:
		return next == StateSeen
	default:
		return false
	}
}

// Message represents a single persisted utterance within a Chat.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	SenderID  string
	Text      string
	State     DeliveryState
	CreatedAt time.Time
}

// NewMessage validates the payload and creates a server-acknowledged message.
func NewMessage(chatID uuid.UUID, senderID, text string, at time.Time) (Message, error) {
	if senderID == "" {
		return Message{}, errors.ErrMissingParticipant
	}
	if text == "" {
		return Message{}, errors.ErrEmptyText
	}
	return Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		State:     StateSent,
		CreatedAt: at,
	}, nil
}

// MarkSeen advances the message to its terminal state. Re-applying seen to an
// already-seen message is a no-op; the returned bool reports whether the
// state actually changed.
func (m *Message) MarkSeen() bool {
	if !m.State.CanAdvanceTo(StateSeen) {
		return false
	}
	m.State = StateSeen
	return true
}
