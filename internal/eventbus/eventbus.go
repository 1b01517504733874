// Package eventbus implements the in-process publish/subscribe fan-out
// connecting the state machine to the trigger manager, broadcaster and
// analytics aggregator. Delivery is non-blocking: a slow subscriber
// drops events instead of stalling publishers.
package eventbus

import "sync"

// defaultBuffer is the per-subscriber channel depth.
const defaultBuffer = 64

// Bus is a type-safe fan-out bus for events of type T.
type Bus[T any] struct {
	buffer int

	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// New creates a Bus with the given per-subscriber buffer, defaulting
// to 64 when buffer is not positive.
func New[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus[T]{buffer: buffer}
}

// Publish sends the event to all subscribers. Delivery is non-blocking;
// subscribers whose buffer is full miss the event.
func (b *Bus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns its channel.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
