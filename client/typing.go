package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// typingTTL is how long a typing notice stays visible without a stopTyping
// or a refresh. Covers lost stop events from abrupt disconnects.
const typingTTL = 5 * time.Second

// TypingTracker keeps the set of users currently composing per chat.
// Entries self-expire, so a lost stopTyping never leaves a stuck indicator.
type TypingTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	started map[uuid.UUID]map[string]time.Time
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		now:     time.Now,
		started: make(map[uuid.UUID]map[string]time.Time),
	}
}

// Start records (or refreshes) a typing notice for a user in a chat.
func (tt *TypingTracker) Start(chatID uuid.UUID, userID string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	users, ok := tt.started[chatID]
	if !ok {
		users = make(map[string]time.Time)
		tt.started[chatID] = users
	}
	users[userID] = tt.now()
}

// Stop clears a user's typing notice.
func (tt *TypingTracker) Stop(chatID uuid.UUID, userID string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if users, ok := tt.started[chatID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(tt.started, chatID)
		}
	}
}

// Typing returns the users still composing in a chat, sorted, after
// pruning expired notices.
func (tt *TypingTracker) Typing(chatID uuid.UUID) []string {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	users, ok := tt.started[chatID]
	if !ok {
		return nil
	}

	cutoff := tt.now().Add(-typingTTL)
	var active []string
	for userID, at := range users {
		if at.Before(cutoff) {
			delete(users, userID)
			continue
		}
		active = append(active, userID)
	}
	if len(users) == 0 {
		delete(tt.started, chatID)
	}
	sort.Strings(active)
	return active
}
