package catalog

import (
	"sync"
	"time"
)

// ChangeKind describes which mutation happened
type ChangeKind string

const (
	ChangeSubmitted ChangeKind = "submitted"
	ChangeDecided   ChangeKind = "decided"
	ChangeTimeline  ChangeKind = "timeline"
)

const DefaultSubscriberBuffer = 16

// Change is published after every successful catalog mutation
type Change struct {
	Kind      ChangeKind `json:"kind"`
	ProductID string     `json:"product_id"`
	At        time.Time  `json:"at"`
}

// Hub fans catalog changes out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event, which is safe for consumers
// that re-read the whole catalog on any change.
type Hub struct {
	mu               sync.RWMutex
	subs             map[uint64]chan Change
	nextID           uint64
	subscriberBuffer int
}

// Subscription receives changes until closed
type Subscription struct {
	hub  *Hub
	id   uint64
	ch   chan Change
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:             make(map[uint64]chan Change),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(change Change) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Change, h.subscriberBuffer)
	h.subs[id] = ch
	return &Subscription{hub: h, id: id, ch: ch}
}

// C returns the receive side of the subscription
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}
