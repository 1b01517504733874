package planner

import (
	"sort"

	"github.com/fleetcore/dispatchd/core/model"
)

// solution is a working assignment of stops to vehicles. routes and
// scheds are index-aligned with the model's vehicle list.
type solution struct {
	routes     [][]model.Stop
	scheds     []schedule
	unassigned []model.UnassignedStop
}

func newSolution(m *Model) *solution {
	return &solution{
		routes: make([][]model.Stop, len(m.Vehicles)),
		scheds: make([]schedule, len(m.Vehicles)),
	}
}

func (s *solution) clone() *solution {
	cp := &solution{
		routes:     make([][]model.Stop, len(s.routes)),
		scheds:     make([]schedule, len(s.scheds)),
		unassigned: append([]model.UnassignedStop(nil), s.unassigned...),
	}
	for i := range s.routes {
		cp.routes[i] = append([]model.Stop(nil), s.routes[i]...)
		cp.scheds[i] = s.scheds[i]
	}
	return cp
}

// resimulate refreshes the schedule of one route.
func (s *solution) resimulate(m *Model, cfg Config, i int) {
	s.scheds[i] = simulate(m.Vehicles[i], s.routes[i], m.Matrix, m.Now, cfg)
}

// insertion is one candidate placement of a stop.
type insertion struct {
	vehicle  int
	position int
	delta    int64
	found    bool
}

// bestInsertion evaluates every position in every route and returns the
// cheapest feasible placement by marginal cost. The forecast bias
// discounts placements that keep a vehicle in a region expecting
// volume. capacityBlocked reports whether at least one candidate failed
// only on capacity, which decides the unassigned reason.
func (s *solution) bestInsertion(m *Model, cfg Config, stop model.Stop) (insertion, bool) {
	best := insertion{}
	capacityBlocked := false

	for vi := range m.Vehicles {
		v := m.Vehicles[vi]
		if !stop.Demand.Fits(v.Capacity) {
			capacityBlocked = true
			continue
		}
		baseCost := s.scheds[vi].cost(cfg)
		var bias int64
		if cfg.ForecastBiasSeconds > 0 && m.RegionBias != nil && stop.Region != "" && stop.Region == v.Region {
			bias = int64(float64(cfg.ForecastBiasSeconds) * m.RegionBias[stop.Region])
		}
		for pos := 0; pos <= len(s.routes[vi]); pos++ {
			seq := make([]model.Stop, 0, len(s.routes[vi])+1)
			seq = append(seq, s.routes[vi][:pos]...)
			seq = append(seq, stop)
			seq = append(seq, s.routes[vi][pos:]...)
			sched := simulate(v, seq, m.Matrix, m.Now, cfg)
			if !sched.feasible {
				if !stopFitsLoad(v, seq) {
					capacityBlocked = true
				}
				continue
			}
			delta := sched.cost(cfg) - baseCost - bias
			if !best.found || delta < best.delta {
				best = insertion{vehicle: vi, position: pos, delta: delta, found: true}
			}
		}
	}
	return best, capacityBlocked
}

func stopFitsLoad(v model.Vehicle, seq []model.Stop) bool {
	r := model.Route{}
	for _, s := range seq {
		r.Stops = append(r.Stops, model.RouteStop{Stop: s})
	}
	return r.FitsCapacity(v.Capacity)
}

// apply places the stop and refreshes the affected schedule.
func (s *solution) apply(m *Model, cfg Config, stop model.Stop, ins insertion) {
	route := s.routes[ins.vehicle]
	route = append(route[:ins.position], append([]model.Stop{stop}, route[ins.position:]...)...)
	s.routes[ins.vehicle] = route
	s.resimulate(m, cfg, ins.vehicle)
}

// construct builds an initial feasible solution by greedy cheapest
// insertion. Stops are placed highest priority first; ties fall to the
// earlier deadline, then the closer stop.
func construct(m *Model, cfg Config) *solution {
	sol := newSolution(m)
	pending := seedIncumbent(m, cfg, sol)

	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Window.Latest.Equal(b.Window.Latest) {
			return a.Window.Latest.Before(b.Window.Latest)
		}
		return nearestVehicleMeters(m, a) < nearestVehicleMeters(m, b)
	})

	for _, stop := range pending {
		ins, capacityBlocked := sol.bestInsertion(m, cfg, stop)
		if !ins.found {
			reason := model.ReasonWindowConflict
			if len(m.Vehicles) == 0 {
				reason = model.ReasonNoVehicleOnDuty
			} else if capacityBlocked {
				reason = model.ReasonNoCapacity
			}
			sol.unassigned = append(sol.unassigned, model.UnassignedStop{Stop: stop, Reason: reason})
			continue
		}
		sol.apply(m, cfg, stop, ins)
	}
	return sol
}

// seedIncumbent preloads routes from the committed plan so re-solves
// start from the current assignment instead of scratch. Routes that
// became infeasible (driver delay, shift change) are dissolved back
// into the pending list. Returns the stops still needing placement.
func seedIncumbent(m *Model, cfg Config, sol *solution) []model.Stop {
	byID := make(map[string]model.Stop, len(m.Stops))
	for _, s := range m.Stops {
		byID[s.ID] = s
	}
	seeded := make(map[string]bool)

	vehicleIndex := make(map[string]int, len(m.Vehicles))
	for i, v := range m.Vehicles {
		vehicleIndex[v.ID] = i
	}

	for _, route := range m.Incumbent {
		vi, ok := vehicleIndex[route.VehicleID]
		if !ok {
			continue
		}
		var seq []model.Stop
		for _, rs := range route.Stops {
			if s, live := byID[rs.Stop.ID]; live && !seeded[s.ID] {
				seq = append(seq, s)
			}
		}
		if len(seq) == 0 {
			continue
		}
		sched := simulate(m.Vehicles[vi], seq, m.Matrix, m.Now, cfg)
		if !sched.feasible {
			continue
		}
		sol.routes[vi] = seq
		sol.scheds[vi] = sched
		for _, s := range seq {
			seeded[s.ID] = true
		}
	}

	var pending []model.Stop
	for _, s := range m.Stops {
		if !seeded[s.ID] {
			pending = append(pending, s)
		}
	}
	return pending
}

func nearestVehicleMeters(m *Model, stop model.Stop) int {
	best := -1
	for _, v := range m.Vehicles {
		d := m.Matrix.At(v.StartPosition(), stop.Location).Meters
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0
	}
	return best
}
