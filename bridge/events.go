package bridge

import (
	"sync"
	"time"
)

// EventType classifies a boundary event.
type EventType string

const (
	EventLifecycle        EventType = "lifecycle"
	EventConfig           EventType = "config"
	EventPowerState       EventType = "power_state"
	EventNetworkType      EventType = "network_type"
	EventConnectionOpened EventType = "connection_opened"
	EventConnectionClosed EventType = "connection_closed"
	EventAppMode          EventType = "app_mode"
	EventWake             EventType = "wake"
	EventResume           EventType = "resume"
	EventLabel            EventType = "label"
	EventQuality          EventType = "quality"
	EventKeepalive        EventType = "keepalive"
)

// Event is the JSON-serialisable envelope published on every state change.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type subscriber struct {
	ch chan Event
}

// EventBus fans boundary events out to in-process subscribers.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewEventBus constructs a ready EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, 64)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, unsub
}

// Publish sends e to all current subscribers. Slow consumers are skipped so
// a boundary call never blocks on a listener.
func (b *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Len returns the current subscriber count.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
