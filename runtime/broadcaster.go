// Package runtime handles event propagation from the message path to live
// connections. It orchestrates delivery without containing business logic
// or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"whisper/contract"
	"whisper/domain/event"
	"whisper/observability"
)

// Broadcaster is the single owner of event delivery. Every state-changing
// event flows through its inbox channel and is dispatched from one
// goroutine, so target resolution and sink pushes never race. Pushing into
// a connection sink is non-blocking, which keeps one slow consumer from
// stalling delivery to everyone else.
type Broadcaster struct {
	log        *slog.Logger
	registry   contract.IPresenceRegistry
	inbox      chan event.DomainEvent
	permanent  []contract.EventSink
	monitoring *observability.Monitoring
}

func NewBroadcaster(log *slog.Logger, registry contract.IPresenceRegistry,
	monitoring *observability.Monitoring, bufferSize int) *Broadcaster {
	return &Broadcaster{
		log:        log,
		registry:   registry,
		inbox:      make(chan event.DomainEvent, bufferSize),
		monitoring: monitoring,
	}
}

// Add registers permanent sinks that observe every event regardless of
// addressing (search indexing, counters). Must be called before Run.
func (b *Broadcaster) Add(sinks ...contract.EventSink) {
	b.permanent = append(b.permanent, sinks...)
}

// Publish enqueues an event for delivery. It never blocks: when the inbox
// is saturated the event is dropped with a warning, because the real-time
// path is best-effort by contract and clients recover via fetch.
func (b *Broadcaster) Publish(e event.DomainEvent) {
	select {
	case b.inbox <- e:
	default:
		b.monitoring.IncrDropped()
		b.log.Warn(fmt.Sprintf("broadcast inbox full, dropping %s event", e.EventName()))
	}
}

// Run drains the inbox until the context ends. It is meant to run under the
// supervisor: a panic caused by one malformed event restarts the loop
// without evicting any connection.
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.log.Debug("context done, stopping broadcaster")
			return nil
		case evt := <-b.inbox:
			b.deliver(ctx, evt)
		}
	}
}

func (b *Broadcaster) deliver(ctx context.Context, e event.DomainEvent) {
	for _, s := range b.permanent {
		if err := s.Consume(ctx, e); err != nil {
			b.log.Warn("permanent sink failed", "event", e.EventName(), "error", err)
		}
	}

	switch evt := e.(type) {
	case event.MessageSent:
		b.toUser(ctx, evt.RecipientID, evt)
	case event.ChatSeen:
		// One notification per original sender, normally a single user in
		// a two-party chat.
		for _, senderID := range evt.SenderIDs {
			if senderID == evt.ReaderID {
				continue
			}
			b.toUser(ctx, senderID, evt)
		}
	case event.TypingStarted:
		b.toRoom(ctx, evt, evt.UserID)
	case event.TypingStopped:
		b.toRoom(ctx, evt, evt.UserID)
	case event.PresenceChanged:
		for _, userID := range evt.Online {
			b.toUser(ctx, userID, evt)
		}
	default:
		b.log.Debug(fmt.Sprintf("no delivery rule for event %T", evt))
	}
}

// toUser pushes to a single user's live connection. An absent target is not
// an error: the event is dropped and the user catches up on next fetch.
func (b *Broadcaster) toUser(ctx context.Context, userID string, e event.DomainEvent) {
	s, ok := b.registry.Sink(userID)
	if !ok {
		b.monitoring.IncrDropped()
		return
	}
	if err := s.Consume(ctx, e); err != nil {
		b.log.Debug("sink rejected event", "user_id", userID, "error", err)
		return
	}
	b.monitoring.IncrDelivered()
}

// toRoom pushes to everyone joined to the event's chat except the
// originator.
func (b *Broadcaster) toRoom(ctx context.Context, e event.DomainEvent, originID string) {
	var members []string
	switch evt := e.(type) {
	case event.TypingStarted:
		members = b.registry.Members(evt.ChatID)
	case event.TypingStopped:
		members = b.registry.Members(evt.ChatID)
	}

	for _, userID := range members {
		if userID == originID {
			continue
		}
		b.toUser(ctx, userID, e)
	}
}
