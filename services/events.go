package services

import (
	"sync"
	"time"
)

// EventKind tags the domain events the transport layer renders.
type EventKind string

const (
	EventMatchFormed EventKind = "match_formed"
	EventMoveApplied EventKind = "move_applied"
	EventGameEnded   EventKind = "game_ended"
	EventGameExpired EventKind = "game_expired"
)

// Event carries everything the transport needs to render a state change.
// The core never formats or delivers messages itself.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	PlayerX   string    `json:"player_x,omitempty"`
	PlayerO   string    `json:"player_o,omitempty"`
	Board     string    `json:"board,omitempty"`
	Turn      string    `json:"turn,omitempty"`
	Verdict   string    `json:"verdict,omitempty"`
	At        time.Time `json:"at"`
}

// EventBus is an in-process publish/subscribe fan-out. Publishing never
// blocks: a subscriber whose buffer is full misses the event. Delivery
// guarantees beyond that belong to the transport layer, not the core.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel and returns its id
// for Unsubscribe.
func (b *EventBus) Subscribe(buffer int) (int, <-chan Event) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish fans the event out to all current subscribers.
func (b *EventBus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
