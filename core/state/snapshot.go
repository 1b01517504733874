package state

import (
	"sort"

	"github.com/fleetcore/dispatchd/core/model"
)

// Snapshot is an immutable copy of the committed state, keyed by the
// version it was taken at. Model builds, broadcasts and API reads all
// work from snapshots; none of them hold live references into the
// machine.
type Snapshot struct {
	Version    int64                  `json:"version"`
	PlanID     string                 `json:"plan_id"`
	Vehicles   []model.Vehicle        `json:"vehicles"`
	Stops      []model.Stop           `json:"stops"`
	Routes     []model.Route          `json:"routes"`
	Unassigned []model.UnassignedStop `json:"unassigned"`
}

// Snapshot copies the current state under the read lock.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Version:    m.version,
		PlanID:     m.planID,
		Unassigned: append([]model.UnassignedStop(nil), m.unassigned...),
	}
	for _, v := range m.vehicles {
		v.Capacity = v.Capacity.Clone()
		snap.Vehicles = append(snap.Vehicles, v)
	}
	for _, s := range m.stops {
		s.Demand = s.Demand.Clone()
		snap.Stops = append(snap.Stops, s)
	}
	for _, r := range m.routes {
		r.Stops = append([]model.RouteStop(nil), r.Stops...)
		snap.Routes = append(snap.Routes, r)
	}
	sort.Slice(snap.Vehicles, func(i, j int) bool { return snap.Vehicles[i].ID < snap.Vehicles[j].ID })
	sort.Slice(snap.Stops, func(i, j int) bool { return snap.Stops[i].ID < snap.Stops[j].ID })
	sort.Slice(snap.Routes, func(i, j int) bool { return snap.Routes[i].VehicleID < snap.Routes[j].VehicleID })
	return snap
}

// RouteFor returns the active route for a vehicle, if any.
func (s Snapshot) RouteFor(vehicleID string) *model.Route {
	for i := range s.Routes {
		if s.Routes[i].VehicleID == vehicleID {
			return &s.Routes[i]
		}
	}
	return nil
}

// StopByID returns the stop with the given ID, if known.
func (s Snapshot) StopByID(id string) *model.Stop {
	for i := range s.Stops {
		if s.Stops[i].ID == id {
			return &s.Stops[i]
		}
	}
	return nil
}

// ActiveStops returns the stops available for planning: everything not
// in a terminal status.
func (s Snapshot) ActiveStops() []model.Stop {
	var out []model.Stop
	for _, st := range s.Stops {
		if !st.Status.Terminal() {
			out = append(out, st)
		}
	}
	return out
}

// NeedsAttention lists the items requiring manual dispatcher handling:
// stops the last plan could not place. They are surfaced, never
// silently dropped.
func (m *Machine) NeedsAttention() []model.UnassignedStop {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.UnassignedStop(nil), m.unassigned...)
}

// PreviousRoute returns the superseded route generation for a vehicle,
// retained for audit and delta computation.
func (m *Machine) PreviousRoute(vehicleID string) (model.Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.prevRoutes[vehicleID]
	return r, ok
}

// EventLog exposes the bounded transition log for read-side consumers.
func (m *Machine) EventLog() *Log { return m.log }
