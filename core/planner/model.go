package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetcore/dispatchd/core/forecast"
	"github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
)

// Model is the VRP instance one solver run operates on. It is a private
// snapshot: solves never read live state or call the provider mid-search.
type Model struct {
	Vehicles []model.Vehicle
	Stops    []model.Stop
	Matrix   *geo.Matrix
	Now      time.Time

	// BaseVersion is the state-machine version the snapshot was taken
	// at. Commits are rejected when it no longer matches.
	BaseVersion int64

	// Unassignable stops were rejected at build time (expired window,
	// invalid definition) and are surfaced with every plan built from
	// this model.
	Unassignable []model.UnassignedStop

	// RegionBias maps region names to forecasted order volume. Nil when
	// no forecast source is configured.
	RegionBias map[string]float64

	// Scope lists the vehicle IDs a scoped re-solve is restricted to.
	// Empty means full fleet.
	Scope []string

	// Incumbent carries the committed routes for warm starting, so a
	// re-solve over an unchanged stop set never regresses.
	Incumbent []model.Route
}

// ModelBuildError reports a structural build failure: no usable fleet
// or no distance matrix. Per-stop problems never raise it; they land in
// Model.Unassignable instead.
type ModelBuildError struct {
	Reason string
}

func (e *ModelBuildError) Error() string {
	return fmt.Sprintf("model build failed: %s", e.Reason)
}

// Builder assembles VRP instances from current orders and fleet state.
type Builder struct {
	matrix   *geo.MatrixBuilder
	forecast forecast.Source
	log      logger.Logger
}

// NewBuilder creates a Builder. The forecast source may be nil; plans
// are then built without a pre-positioning bias.
func NewBuilder(matrix *geo.MatrixBuilder, fc forecast.Source, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop{}
	}
	return &Builder{matrix: matrix, forecast: fc, log: log}
}

// Build assembles a model for the given fleet and stop set. Stops whose
// lifecycle already ended are filtered; stops whose window expired
// before now are flagged unassignable rather than aborting the build.
// One bad stop must not block the rest of the fleet.
func (b *Builder) Build(ctx context.Context, vehicles []model.Vehicle, stops []model.Stop, baseVersion int64, now time.Time) (*Model, error) {
	m := &Model{Now: now, BaseVersion: baseVersion}

	for _, v := range vehicles {
		if !v.OnDuty(now) {
			continue
		}
		m.Vehicles = append(m.Vehicles, v)
	}

	for _, s := range stops {
		if s.Status.Terminal() {
			continue
		}
		if err := s.Validate(); err != nil {
			b.log.Warnf("stop %s rejected: %v", s.ID, err)
			m.Unassignable = append(m.Unassignable, model.UnassignedStop{Stop: s, Reason: model.ReasonWindowConflict})
			continue
		}
		if now.After(s.Window.Latest) {
			b.log.Warnf("stop %s window expired before model build", s.ID)
			m.Unassignable = append(m.Unassignable, model.UnassignedStop{Stop: s, Reason: model.ReasonWindowExpired})
			continue
		}
		m.Stops = append(m.Stops, s)
	}

	if len(m.Vehicles) == 0 && len(m.Stops) > 0 {
		return nil, &ModelBuildError{Reason: "no vehicles on duty"}
	}

	points := make([]model.Coord, 0, len(m.Vehicles)+len(m.Stops))
	for _, v := range m.Vehicles {
		points = append(points, v.StartPosition())
	}
	for _, s := range m.Stops {
		points = append(points, s.Location)
	}
	matrix, err := b.matrix.Build(ctx, points, now)
	if err != nil {
		return nil, &ModelBuildError{Reason: fmt.Sprintf("distance matrix: %v", err)}
	}
	m.Matrix = matrix

	if b.forecast != nil {
		m.RegionBias = b.forecast.VolumeHints(now)
	}
	return m, nil
}

// Scoped returns a copy of the model restricted to the given vehicles
// and the stops currently assigned to them plus any unrouted stops.
// Scoped solves keep re-optimization latency bounded.
func (m *Model) Scoped(vehicleIDs []string, stopIDs []string) *Model {
	inScope := make(map[string]bool, len(vehicleIDs))
	for _, id := range vehicleIDs {
		inScope[id] = true
	}
	stopInScope := make(map[string]bool, len(stopIDs))
	for _, id := range stopIDs {
		stopInScope[id] = true
	}

	sub := &Model{
		Matrix:       m.Matrix,
		Now:          m.Now,
		BaseVersion:  m.BaseVersion,
		Unassignable: m.Unassignable,
		RegionBias:   m.RegionBias,
		Scope:        vehicleIDs,
	}
	for _, v := range m.Vehicles {
		if inScope[v.ID] {
			sub.Vehicles = append(sub.Vehicles, v)
		}
	}
	for _, s := range m.Stops {
		if stopInScope[s.ID] {
			sub.Stops = append(sub.Stops, s)
		}
	}
	for _, r := range m.Incumbent {
		if inScope[r.VehicleID] {
			sub.Incumbent = append(sub.Incumbent, r)
		}
	}
	return sub
}
