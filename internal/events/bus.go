// Package events carries job progress from the coordinator to any number of
// observers. Publishing never blocks: a subscriber that cannot keep up is
// dropped rather than allowed to stall the crawl.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

// Type tags an event.
type Type string

// Event types.
const (
	TypeLog         Type = "log"
	TypeStatus      Type = "status"
	TypeResultBatch Type = "results"
	TypeError       Type = "error"
)

// Event is an immutable progress notification. Message and Level are set for
// log and error events; Payload carries the status snapshot or result batch
// for the others. Fatal marks errors that ended the job.
type Event struct {
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	Fatal   bool      `json:"fatal,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Log builds a log event.
func Log(msg string) Event {
	return Event{Type: TypeLog, Time: time.Now(), Message: msg}
}

// Error builds an error event.
func Error(msg string, fatal bool) Event {
	return Event{Type: TypeError, Time: time.Now(), Message: msg, Fatal: fatal}
}

// Status builds a status event carrying a job snapshot.
func Status(payload any) Event {
	return Event{Type: TypeStatus, Time: time.Now(), Payload: payload}
}

// ResultBatch builds a result-batch event.
func ResultBatch(payload any) Event {
	return Event{Type: TypeResultBatch, Time: time.Now(), Payload: payload}
}

// Subscription is one observer's buffered event feed.
type Subscription struct {
	id  uint64
	ch  chan Event
	bus *Bus
}

// Events returns the receive side of the feed. The channel is closed when
// the subscription is cancelled or the subscriber falls behind.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close cancels the subscription.
func (s *Subscription) Close() { s.bus.remove(s.id) }

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	logger *zap.Logger
}

// NewBus creates a bus whose subscriber channels buffer the given number of
// events; values below 1 fall back to 16.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer < 1 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: map[uint64]*Subscription{}, buffer: buffer, logger: logger}
}

// Subscribe registers a new observer. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{id: b.nextID, ch: make(chan Event, b.buffer), bus: b}
	b.nextID++
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers the event to every live subscriber. A subscriber whose
// buffer is full is removed and its channel closed; delivery to the others
// proceeds regardless.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			delete(b.subs, id)
			close(sub.ch)
			metrics.ObserveEventDropped()
			b.logger.Warn("slow subscriber removed", zap.Uint64("id", id))
		}
	}
}

// SubscriberCount reports live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the bus down, closing every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}
