package observability

import (
	"sync/atomic"
)

// Stats is a point-in-time snapshot of the delivery counters.
type Stats struct {
	Delivered      uint64 `json:"delivered"`
	Dropped        uint64 `json:"dropped"`
	MessagesStored uint64 `json:"messages_stored"`
	SeenFlips      uint64 `json:"seen_flips"`
}

// Monitoring aggregates cheap atomic counters for the real-time path.
// It deliberately has no locks: counters may be read while being written.
type Monitoring struct {
	delivered      atomic.Uint64
	dropped        atomic.Uint64
	messagesStored atomic.Uint64
	seenFlips      atomic.Uint64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) IncrDelivered()      { m.delivered.Add(1) }
func (m *Monitoring) IncrDropped()        { m.dropped.Add(1) }
func (m *Monitoring) IncrMessagesStored() { m.messagesStored.Add(1) }
func (m *Monitoring) IncrSeenFlips()      { m.seenFlips.Add(1) }

func (m *Monitoring) Snapshot() Stats {
	return Stats{
		Delivered:      m.delivered.Load(),
		Dropped:        m.dropped.Load(),
		MessagesStored: m.messagesStored.Load(),
		SeenFlips:      m.seenFlips.Load(),
	}
}
