package sink

import (
	"context"
	"log/slog"

	"whisper/domain/event"
)

// ConnSink is the delivery buffer of one live connection. The broadcaster
// feeds it, the connection's write pump drains it.
type ConnSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
}

func NewConnSink(log *slog.Logger, bufferSize int) *ConnSink {
	return &ConnSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume hands the event over to the connection's channel. A slow consumer
// loses events instead of stalling the broadcast loop: live events are
// best-effort, the client recovers authoritative state on its next fetch.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Debug("connection buffer full, dropping event", "event", e.EventName())
		return nil
	}
}
