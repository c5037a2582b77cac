// Package client holds the connection-side view of a conversation: the
// optimistic transcript a UI renders immediately, reconciled against the
// server's authoritative responses as they arrive.
package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"whisper/domain"
)

// EntryStatus is the client-local delivery view of one transcript row.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusConfirmed EntryStatus = "confirmed"
	StatusFailed    EntryStatus = "failed"
)

// Entry is one row of the rendered transcript. LocalID never changes;
// Message is replaced wholesale when the server confirms the send.
type Entry struct {
	LocalID uuid.UUID
	Message domain.Message
	Status  EntryStatus
}

// Summary mirrors one row of the chat list, updated in place when events
// arrive for chats other than the active one.
type Summary struct {
	ChatID      uuid.UUID
	Counterpart string
	LastText    string
	LastSender  string
	Unread      int
}

// Transcript is the reconciliation core for a single user's session: one
// active chat rendered in full, every other chat tracked as a summary.
// All methods are safe for concurrent use; the read pump and the UI
// goroutine both touch it.
type Transcript struct {
	mu         sync.Mutex
	selfID     string
	activeChat uuid.UUID
	entries    []Entry
	summaries  map[uuid.UUID]*Summary
}

func NewTranscript(selfID string) *Transcript {
	return &Transcript{
		selfID:    selfID,
		summaries: make(map[uuid.UUID]*Summary),
	}
}

// Activate replaces the rendered transcript with an authoritative fetch
// result. Pending entries for the same chat are preserved after the fetched
// rows; they are still awaiting their confirm or fail.
func (t *Transcript) Activate(chatID uuid.UUID, fetched []domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []Entry
	if t.activeChat == chatID {
		for _, e := range t.entries {
			if e.Status == StatusPending {
				pending = append(pending, e)
			}
		}
	}

	t.activeChat = chatID
	t.entries = t.entries[:0]
	for _, m := range fetched {
		t.entries = append(t.entries, Entry{LocalID: uuid.New(), Message: m, Status: StatusConfirmed})
	}
	t.entries = append(t.entries, pending...)

	if s, ok := t.summaries[chatID]; ok {
		s.Unread = 0
	}
}

// BeginSend appends an optimistic pending entry and returns its local id.
// The rendered message carries the pending state until the server answers.
func (t *Transcript) BeginSend(chatID uuid.UUID, text string, at time.Time) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	localID := uuid.New()
	t.entries = append(t.entries, Entry{
		LocalID: localID,
		Message: domain.Message{
			ID:        localID,
			ChatID:    chatID,
			SenderID:  t.selfID,
			Text:      text,
			State:     domain.StatePending,
			CreatedAt: at,
		},
		Status: StatusPending,
	})
	return localID
}

// Confirm swaps the pending entry's message for the server-acknowledged one
// in place, keeping transcript position. Confirming an unknown or already
// settled id is a no-op and reports false.
func (t *Transcript) Confirm(localID uuid.UUID, serverMsg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].LocalID == localID && t.entries[i].Status == StatusPending {
			t.entries[i].Message = serverMsg
			t.entries[i].Status = StatusConfirmed
			return true
		}
	}
	return false
}

// Fail marks a pending entry as failed. The entry stays visible so the user
// can retry explicitly; nothing retries on its own.
func (t *Transcript) Fail(localID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].LocalID == localID && t.entries[i].Status == StatusPending {
			t.entries[i].Message.State = domain.StateFailed
			t.entries[i].Status = StatusFailed
			return true
		}
	}
	return false
}

// ApplyIncoming handles a live newMessage event. A message for the active
// chat lands in the transcript; anything else only bumps that chat's
// summary and unread counter.
func (t *Transcript) ApplyIncoming(msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.ChatID == t.activeChat {
		t.entries = append(t.entries, Entry{LocalID: uuid.New(), Message: msg, Status: StatusConfirmed})
		return
	}

	s, ok := t.summaries[msg.ChatID]
	if !ok {
		s = &Summary{ChatID: msg.ChatID, Counterpart: msg.SenderID}
		t.summaries[msg.ChatID] = s
	}
	s.LastText = msg.Text
	s.LastSender = msg.SenderID
	s.Unread++
}

// ApplySeen handles a messageSeen event: every own sent message in the
// given chat flips to seen. Re-applying is harmless.
func (t *Transcript) ApplySeen(chatID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if chatID != t.activeChat {
		return
	}
	for i := range t.entries {
		m := &t.entries[i].Message
		if m.SenderID == t.selfID {
			m.MarkSeen()
		}
	}
}

// SetSummaries seeds the chat list from an authoritative GET /api/chats.
func (t *Transcript) SetSummaries(summaries []Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summaries = make(map[uuid.UUID]*Summary, len(summaries))
	for _, s := range summaries {
		s := s
		t.summaries[s.ChatID] = &s
	}
}

// Entries returns a copy of the rendered transcript.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Summaries returns a copy of the chat list rows.
func (t *Transcript) Summaries() []Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Summary, 0, len(t.summaries))
	for _, s := range t.summaries {
		out = append(out, *s)
	}
	return out
}

// ActiveChat returns the chat currently rendered in full.
func (t *Transcript) ActiveChat() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeChat
}
