// Package presence owns the transient mapping from online users to live
// connections. Entries live and die with their connection, are never
// persisted, and the whole table rebuilds from zero on process restart.
package presence

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"whisper/contract"
)

// connection is the registry-side view of one live socket.
type connection struct {
	userID string
	sink   contract.EventSink
	joined map[uuid.UUID]struct{}
}

type Registry struct {
	mu    sync.RWMutex
	log   *slog.Logger
	conns map[string]*connection // connID -> connection
	users map[string]string      // userID -> connID, exactly one per user
	rooms map[uuid.UUID]Set      // chatID -> joined userIDs

	// onChange is invoked with the full online set after every successful
	// register and every unregister that took a user offline. It runs under
	// the registry lock so snapshots are published in mutation order; the
	// callback must not re-enter the registry and must not block (the
	// broadcaster's Publish is a non-blocking enqueue).
	onChange func(online []string)
}

type Set map[string]struct{}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		conns: make(map[string]*connection),
		users: make(map[string]string),
		rooms: make(map[uuid.UUID]Set),
	}
}

// OnPresenceChange installs the presence-changed notifier. Must be wired
// before the first connection arrives.
func (r *Registry) OnPresenceChange(fn func(online []string)) {
	r.onChange = fn
}

// Register binds a user to a live connection, last-connect-wins: a new
// connection for an already-present user replaces the old mapping, and the
// replaced connection's room memberships die with it.
func (r *Registry) Register(userID, connID string, sink contract.EventSink) {
	r.mu.Lock()
	if oldConnID, ok := r.users[userID]; ok && oldConnID != connID {
		r.dropConnLocked(oldConnID)
		r.log.Debug("presence mapping replaced", "user_id", userID, "old_conn", oldConnID)
	}
	r.conns[connID] = &connection{
		userID: userID,
		sink:   sink,
		joined: make(map[uuid.UUID]struct{}),
	}
	r.users[userID] = connID
	r.notify(r.onlineLocked())
	r.mu.Unlock()
}

// Lookup resolves the single live connection of a user, if any.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.users[userID]
	return connID, ok
}

// Sink resolves the event sink behind a user's live connection.
func (r *Registry) Sink(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	conn, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

// Unregister removes the entry owned by this connection. Calling it for a
// connection that never identified, or that was already replaced by a newer
// one, is a silent no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	wentOffline := r.users[conn.userID] == connID
	r.dropConnLocked(connID)
	if wentOffline {
		delete(r.users, conn.userID)
		r.notify(r.onlineLocked())
	}
	r.mu.Unlock()
}

// Online returns a sorted snapshot of all online user ids.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// Join subscribes the connection's user to a chat room for typing signals.
// Joining before identifying is ignored.
func (r *Registry) Join(connID string, chatID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	conn.joined[chatID] = struct{}{}
	if _, ok := r.rooms[chatID]; !ok {
		r.rooms[chatID] = make(Set)
	}
	r.rooms[chatID][conn.userID] = struct{}{}
}

// Members lists the users currently joined to a chat room.
func (r *Registry) Members(chatID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[chatID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for userID := range members {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// dropConnLocked removes a connection and its room memberships. No empty
// room sets are left behind.
func (r *Registry) dropConnLocked(connID string) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	for chatID := range conn.joined {
		if members, ok := r.rooms[chatID]; ok {
			delete(members, conn.userID)
			if len(members) == 0 {
				delete(r.rooms, chatID)
			}
		}
	}
	delete(r.conns, connID)
}

func (r *Registry) onlineLocked() []string {
	online := make([]string, 0, len(r.users))
	for userID := range r.users {
		online = append(online, userID)
	}
	sort.Strings(online)
	return online
}

func (r *Registry) notify(online []string) {
	if r.onChange != nil {
		r.onChange(online)
	}
}
