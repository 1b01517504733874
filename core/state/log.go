package state

import (
	"sync"

	"github.com/fleetcore/dispatchd/core/events"
)

// defaultLogCap bounds the in-memory transition log. The engine keeps
// no long-term history; persistence is the archive sink's job.
const defaultLogCap = 4096

// Log is the bounded, append-only transition log. Every mutation of the
// state machine appends its event here before the state changes, so
// read-side consumers never observe state without its causal event.
type Log struct {
	mu      sync.RWMutex
	entries []events.Event
	start   uint64 // sequence number of entries[0]
	cap     int
}

// NewLog creates a log holding at most capacity events, defaulting to
// 4096 when capacity is not positive.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultLogCap
	}
	return &Log{cap: capacity}
}

// Append records an event, evicting the oldest entry when full.
func (l *Log) Append(e events.Event) {
	l.mu.Lock()
	if len(l.entries) == l.cap {
		l.entries = l.entries[1:]
		l.start++
	}
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Recent returns up to n most recent events, oldest first.
func (l *Log) Recent(n int) []events.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]events.Event, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
