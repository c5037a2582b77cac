// Package domain contains core concepts of the messaging system.
// This file defines the Chat entity and its pair-uniqueness invariant.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"

	"whisper/errors"
)

// LatestMessage is the denormalized snapshot kept on a Chat for list rendering.
type LatestMessage struct {
	Text     string
	SenderID string
}

// Chat is a persisted two-party conversation. Participants are stored as a
// canonical (sorted) pair so that at most one Chat can exist per unordered
// pair of users.
type Chat struct {
	ID             uuid.UUID
	ParticipantA   string // canonical low
	ParticipantB   string // canonical high
	Latest         LatestMessage
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// CanonicalPair validates and orders two participant ids. The sorted pair is
// the uniqueness key for chat lookup and creation.
func CanonicalPair(a, b string) (string, string, error) {
	if a == "" || b == "" {
		return "", "", errors.ErrMissingParticipant
	}
	if a == b {
		return "", "", errors.ErrSelfChat
	}
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

// PairKey returns the canonical lookup key for an unordered participant pair.
func PairKey(a, b string) (string, error) {
	lo, hi, err := CanonicalPair(a, b)
	if err != nil {
		return "", err
	}
	return lo + "|" + hi, nil
}

// NewChat creates a Chat with an empty latest-message snapshot.
func NewChat(a, b string, at time.Time) (Chat, error) {
	lo, hi, err := CanonicalPair(a, b)
	if err != nil {
		return Chat{}, err
	}
	return Chat{
		ID:             uuid.New(),
		ParticipantA:   lo,
		ParticipantB:   hi,
		CreatedAt:      at,
		LastActivityAt: at,
	}, nil
}

func (c Chat) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// Counterpart resolves the other participant of a two-party chat.
func (c Chat) Counterpart(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}
