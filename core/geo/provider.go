package geo

import (
	"context"
	"errors"

	"github.com/fleetcore/dispatchd/core/model"
)

// ErrUnavailable indicates the external routing service could not be
// reached. Callers fall back to great-circle estimates; a zero-distance
// result is never used to signal failure.
var ErrUnavailable = errors.New("geo: provider unavailable")

// TravelEstimate is the travel time and distance between two points.
// Times are integer seconds throughout the engine.
type TravelEstimate struct {
	Seconds int
	Meters  int
	// Approximate marks estimates derived from great-circle distance
	// rather than the routing service.
	Approximate bool
}

// Provider returns travel estimates between coordinate pairs.
type Provider interface {
	TravelTime(ctx context.Context, origin, destination model.Coord) (TravelEstimate, error)
}

// MatrixProvider is an optional extension supporting batched lookups
// from one origin to many destinations, reducing external calls.
type MatrixProvider interface {
	Provider
	TravelTimes(ctx context.Context, origin model.Coord, destinations []model.Coord) ([]TravelEstimate, error)
}
