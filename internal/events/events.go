// Package events carries fire-and-forget daemon notifications: recording
// state transitions, elapsed ticks, replay activation, and saved clips.
// Delivery is at-most-once and never blocks the publisher.
package events

import (
	"sync"
	"time"
)

// Kind identifies an event type.
type Kind string

const (
	KindRecordingStateChanged Kind = "recording_state_changed"
	KindRecordingElapsed      Kind = "recording_elapsed"
	KindReplayActiveChanged   Kind = "replay_active_changed"
	KindReplaySaved           Kind = "replay_saved"
)

// Event is a single notification. Fields beyond Kind are populated per kind:
// Status/Path for state changes and saves, Seconds for elapsed ticks, Active
// for replay activation.
type Event struct {
	Kind    Kind
	Status  string
	Path    string
	Seconds int64
	Active  bool
	At      time.Time
}

// Bus fans events out to subscribers. Publish holds the bus mutex for the
// duration of delivery so subscribers observe events in publish order.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// Subscriber receives events on a buffered channel. A subscriber whose
// buffer is full misses events rather than stalling the capture path.
type Subscriber struct {
	bus *Bus
	ch  chan Event
}

// NewBus constructs an event bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscriber{bus: b, ch: make(chan Event, buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*Subscriber]struct{})
}

// Events returns the subscriber's receive channel. The channel is closed
// when the subscriber or the bus is closed.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscriber from the bus and closes its channel.
func (s *Subscriber) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s]; !ok {
		return
	}
	delete(s.bus.subs, s)
	close(s.ch)
}
