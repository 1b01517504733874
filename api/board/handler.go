// Package board exposes the dispatcher's read view over HTTP: the
// current state snapshot, the stops needing attention, rolling
// analytics and a manual full-fleet re-solve trigger.
package board

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fleetcore/dispatchd/core/analytics"
	"github.com/fleetcore/dispatchd/core/state"
	"github.com/fleetcore/dispatchd/pkg/export"
)

// Resolver triggers a full-fleet re-optimization. The trigger manager
// implements it.
type Resolver interface {
	RequestFullSolve(ctx context.Context) error
}

// NewMux builds the board API routes. stats and resolver may be nil;
// their routes respond 404 in that case.
func NewMux(machine *state.Machine, stats *analytics.Aggregator, resolver Resolver) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/board/snapshot", NewSnapshotHandler(machine))
	mux.Handle("/api/board/attention", NewAttentionHandler(machine))
	if stats != nil {
		mux.Handle("/api/board/analytics", NewAnalyticsHandler(stats))
	}
	if resolver != nil {
		mux.Handle("/api/board/resolve", NewResolveHandler(resolver))
	}
	mux.Handle("/api/board/routes.csv", NewRoutesCSVHandler(machine))
	return mux
}

// NewRoutesCSVHandler serves the committed routes as CSV via
// GET /api/board/routes.csv, one row per routed stop.
func NewRoutesCSVHandler(machine *state.Machine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		if err := export.WriteCSV(w, machine.Snapshot().Routes); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// NewSnapshotHandler serves the full committed state via
// GET /api/board/snapshot.
func NewSnapshotHandler(machine *state.Machine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, machine.Snapshot())
	})
}

// NewAttentionHandler serves the stops no feasible route could place
// via GET /api/board/attention.
func NewAttentionHandler(machine *state.Machine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, struct {
			Version    int64       `json:"version"`
			Unassigned interface{} `json:"unassigned"`
		}{machine.Version(), machine.NeedsAttention()})
	})
}

// NewAnalyticsHandler serves the rolling statistics via
// GET /api/board/analytics.
func NewAnalyticsHandler(stats *analytics.Aggregator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, stats.Summary())
	})
}

// NewResolveHandler accepts POST /api/board/resolve and runs a
// full-fleet solve synchronously, returning the resulting version in
// the snapshot endpoint's format.
func NewResolveHandler(resolver Resolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := resolver.RequestFullSolve(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
