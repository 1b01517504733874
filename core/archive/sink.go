// Package archive defines the persistence port for finalized routes.
// The engine holds no long-term history: when a route completes, its
// final record is handed to an external store through a Sink.
package archive

import (
	"context"
	"sync"

	"github.com/fleetcore/dispatchd/core/model"
)

// Sink receives finalized route records. Implementations must tolerate
// being called concurrently.
type Sink interface {
	ArchiveRoute(ctx context.Context, route model.Route) error
}

// NopSink discards routes.
type NopSink struct{}

// ArchiveRoute implements Sink.
func (NopSink) ArchiveRoute(context.Context, model.Route) error { return nil }

// MemorySink retains archived routes in memory. It backs tests and
// deployments without an external store wired.
type MemorySink struct {
	mu     sync.Mutex
	routes []model.Route
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// ArchiveRoute implements Sink.
func (s *MemorySink) ArchiveRoute(_ context.Context, route model.Route) error {
	s.mu.Lock()
	s.routes = append(s.routes, route)
	s.mu.Unlock()
	return nil
}

// Routes returns a copy of the archived routes.
func (s *MemorySink) Routes() []model.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Route(nil), s.routes...)
}
