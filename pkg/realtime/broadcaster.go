package realtime

import "sync"

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 10

// Broadcaster publishes lightweight events to SSE subscribers.
type Broadcaster[E any] struct {
	mu     sync.Mutex
	subs   map[chan E]bool // value reports a dropped event since the last Lagged
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster[E any]() *Broadcaster[E] {
	return &Broadcaster[E]{
		subs: make(map[chan E]bool),
	}
}

// Subscribe registers a new subscriber and returns its event channel.
// Subscribing to a closed broadcaster returns an already closed channel.
func (b *Broadcaster[E]) Subscribe() chan E {
	ch := make(chan E, DefaultBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = false
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster[E]) Unsubscribe(ch chan E) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to all subscribers. A subscriber whose buffer is
// full misses the event and is marked as lagged.
func (b *Broadcaster[E]) Publish(event E) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.subs[ch] = true
		}
	}
	b.mu.Unlock()
}

// Lagged reports whether ch missed an event since the previous call, and
// clears the mark.
func (b *Broadcaster[E]) Lagged(ch chan E) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	lagged := b.subs[ch]
	if lagged {
		b.subs[ch] = false
	}
	return lagged
}

// Subscribers reports how many channels are currently registered.
func (b *Broadcaster[E]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Broadcaster[E]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
