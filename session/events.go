package session

import (
	"sync"
	"time"
)

// EventType labels a session-change notification.
type EventType string

const (
	// EventSessionReady fires after a login completes and permissions are
	// resolved (possibly degraded to guest level).
	EventSessionReady EventType = "session_ready"

	// EventSessionEnded fires after an explicit logout.
	EventSessionEnded EventType = "session_ended"

	// EventSessionInvalidated fires when the session dies underneath the
	// user (refresh token rejected, replay rejected). Consumers route to the
	// login screen.
	EventSessionInvalidated EventType = "session_invalidated"

	// EventPermissionsUpdated fires after an explicit permission refresh.
	EventPermissionsUpdated EventType = "permissions_updated"
)

// Event is one session-change notification.
type Event struct {
	Type      EventType
	SessionID string
	UserID    string
	At        time.Time
}

// Publisher is the event-bus contract the coordinator publishes to.
type Publisher interface {
	Publish(event Event)
}

// Bus is a small in-process fan-out bus. Subscribers receive on buffered
// channels; a subscriber that stops draining loses events rather than
// blocking the coordinator.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool
}

var _ Publisher = (*Bus)(nil)

const subscriberBuffer = 16

func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber fell behind; drop rather than block.
		}
	}
}

// Close unregisters all subscribers and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub)
	}
}
