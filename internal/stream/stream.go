package stream

import (
	"context"
	"sync"
	"time"
)

// EventType names what happened to a charge's ledger.
type EventType string

const (
	EventRegenerated  EventType = "ledger.regenerated"
	EventLockRejected EventType = "ledger.lock_rejected"
	EventValidated    EventType = "ledger.validated"
)

// LedgerEvent is pushed to subscribers (SSE clients) after ledger operations.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	ChargeID  string    `json:"charge_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Entries   int       `json:"entries"`
	Clean     bool      `json:"clean"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs ledger events to all active subscribers.
type Stream struct {
	mu     sync.RWMutex
	subs   map[int]chan LedgerEvent
	next   int
	closed bool
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan LedgerEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends or the stream is closed.
func (s *Stream) Subscribe(ctx context.Context) <-chan LedgerEvent {
	ch := make(chan LedgerEvent, 16)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. A zero timestamp is set to now.
func (s *Stream) Publish(evt LedgerEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of active subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close disconnects every subscriber. Later subscriptions get a closed channel.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
