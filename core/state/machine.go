package state

import (
	"context"
	"sync"
	"time"

	"github.com/fleetcore/dispatchd/core/archive"
	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/logger"
	coremetrics "github.com/fleetcore/dispatchd/core/metrics"
	"github.com/fleetcore/dispatchd/core/model"
	"github.com/fleetcore/dispatchd/internal/eventbus"
)

// Machine is the authoritative store of the committed plan and the
// lifecycle of every stop, route and vehicle. It is the only component
// requiring mutual exclusion: all other components work on snapshots.
// Commits use optimistic concurrency, so solver runs never hold the
// lock and never block position updates or status advances.
type Machine struct {
	mu          sync.RWMutex
	version     int64
	planID      string
	routes      map[string]model.Route // active route per vehicle
	prevRoutes  map[string]model.Route // superseded generation, kept for diffing
	stops       map[string]model.Stop
	stopVehicle map[string]string
	vehicles    map[string]model.Vehicle
	unassigned  []model.UnassignedStop

	log     *Log
	bus     *eventbus.Bus[events.Event]
	archive archive.Sink
	metrics coremetrics.MetricsSink
	logger  logger.Logger
	now     func() time.Time
}

// NewMachine creates a state machine. The bus may be nil when no
// downstream consumers are wired; the archive sink defaults to NopSink.
func NewMachine(log *Log, bus *eventbus.Bus[events.Event], sink archive.Sink, metrics coremetrics.MetricsSink, lg logger.Logger) *Machine {
	if log == nil {
		log = NewLog(0)
	}
	if sink == nil {
		sink = archive.NopSink{}
	}
	if metrics == nil {
		metrics = coremetrics.NopSink{}
	}
	if lg == nil {
		lg = logger.Nop{}
	}
	return &Machine{
		routes:      make(map[string]model.Route),
		prevRoutes:  make(map[string]model.Route),
		stops:       make(map[string]model.Stop),
		stopVehicle: make(map[string]string),
		vehicles:    make(map[string]model.Vehicle),
		log:         log,
		bus:         bus,
		archive:     sink,
		metrics:     metrics,
		logger:      lg,
		now:         time.Now,
	}
}

// record appends the event to the transition log and fans it out.
// Must be called with the write lock held, before the state mutation it
// describes is applied.
func (m *Machine) record(e events.Event) {
	m.log.Append(e)
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// Now returns the machine's clock reading. Tests inject a fixed clock.
func (m *Machine) Now() time.Time {
	return m.now()
}

// Version returns the current committed version.
func (m *Machine) Version() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// AddStop registers a dispatch-ready stop. Re-adding a known stop is a
// no-op so feed redeliveries are harmless.
func (m *Machine) AddStop(stop model.Stop) error {
	if err := stop.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stops[stop.ID]; ok {
		return nil
	}
	stop.Status = model.StopPending
	m.record(events.StopCreated{Stop: stop, At: m.now()})
	m.stops[stop.ID] = stop
	return nil
}

// UpsertVehicle registers a vehicle or refreshes its shift data.
func (m *Machine) UpsertVehicle(v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.vehicles[v.ID]; ok {
		// Keep the live position across shift refreshes.
		v.Position = cur.Position
		v.PositionAt = cur.PositionAt
	}
	m.record(events.ShiftStarted{Vehicle: v, At: m.now()})
	m.vehicles[v.ID] = v
	return nil
}

// EndShift marks a vehicle off duty. Its stops return to pending so the
// next solve can reassign them.
func (m *Machine) EndShift(vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return ErrUnknownVehicle
	}
	m.record(events.ShiftEnded{VehicleID: vehicleID, At: m.now()})
	v.Status = model.VehicleOffShift
	m.vehicles[vehicleID] = v
	if r, ok := m.routes[vehicleID]; ok {
		for _, rs := range r.Stops {
			if s, ok := m.stops[rs.Stop.ID]; ok && s.Status == model.StopAssigned {
				s.Status = model.StopPending
				m.stops[s.ID] = s
				delete(m.stopVehicle, s.ID)
			}
		}
		r.Status = model.RouteSuperseded
		m.prevRoutes[vehicleID] = r
		delete(m.routes, vehicleID)
	}
	return nil
}

// CommitPlan atomically applies a plan and returns the new version. A
// full-fleet plan replaces every route; a scoped plan replaces only the
// routes of the vehicles it covers and leaves the rest of the fleet
// untouched. A plan built against a superseded version, or referencing
// a vehicle no longer on duty, is rejected with StaleModelError and
// must be rebuilt from a fresh snapshot. Consumers never observe a
// partially applied plan.
func (m *Machine) CommitPlan(plan *model.Plan) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if plan.BaseVersion != m.version {
		staleCommits.Inc()
		return 0, &StaleModelError{PlanBase: plan.BaseVersion, Current: m.version}
	}
	for _, r := range plan.Routes {
		v, ok := m.vehicles[r.VehicleID]
		if !ok || v.Status == model.VehicleOffShift {
			staleCommits.Inc()
			return 0, &StaleModelError{PlanBase: plan.BaseVersion, Current: m.version}
		}
	}

	next := m.version + 1
	m.record(events.PlanCommitted{
		PlanID:     plan.ID,
		Version:    next,
		RouteCount: len(plan.Routes),
		StopCount:  plan.StopCount(),
		Unassigned: len(plan.Unassigned),
		SolveTime:  plan.Solve.Duration,
		At:         m.now(),
	})

	// Supersede only the generation the plan covers. A full solve covers
	// the whole fleet; a scoped solve or an ETA refresh covers its scoped
	// vehicles, so every other route stays active and its stops keep
	// their assignment.
	scoped := len(plan.Solve.Scope) > 0
	covered := make(map[string]bool, len(plan.Solve.Scope)+len(plan.Routes))
	for _, id := range plan.Solve.Scope {
		covered[id] = true
	}
	for _, r := range plan.Routes {
		covered[r.VehicleID] = true
	}

	if !scoped {
		m.prevRoutes = make(map[string]model.Route, len(m.routes))
	}
	for vid, r := range m.routes {
		if scoped && !covered[vid] {
			continue
		}
		r.Status = model.RouteSuperseded
		m.prevRoutes[vid] = r
		delete(m.routes, vid)
	}
	for _, r := range plan.Routes {
		r.Status = model.RouteActive
		r.Version = next
		m.routes[r.VehicleID] = r
		v := m.vehicles[r.VehicleID]
		if v.Status == model.VehicleAvailable {
			v.Status = model.VehicleOnRoute
			m.vehicles[r.VehicleID] = v
		}
	}

	// Stops keep their live status; only pending <-> assigned flips with
	// route membership. Membership counts retained out-of-scope routes.
	assignedNow := make(map[string]string)
	for vid, r := range m.routes {
		for _, rs := range r.Stops {
			assignedNow[rs.Stop.ID] = vid
		}
	}
	for id, s := range m.stops {
		vid, nowAssigned := assignedNow[id]
		switch {
		case nowAssigned && s.Status == model.StopPending:
			s.Status = model.StopAssigned
			m.stops[id] = s
			m.stopVehicle[id] = vid
		case nowAssigned:
			m.stopVehicle[id] = vid
		case !nowAssigned && s.Status == model.StopAssigned:
			s.Status = model.StopPending
			m.stops[id] = s
			delete(m.stopVehicle, id)
		}
	}

	if scoped {
		dropped := make(map[string]bool, len(plan.Unassigned))
		for _, u := range plan.Unassigned {
			dropped[u.Stop.ID] = true
		}
		merged := make([]model.UnassignedStop, 0, len(m.unassigned)+len(plan.Unassigned))
		for _, u := range m.unassigned {
			if _, placed := assignedNow[u.Stop.ID]; placed || dropped[u.Stop.ID] {
				continue
			}
			merged = append(merged, u)
		}
		m.unassigned = append(merged, plan.Unassigned...)
	} else {
		m.unassigned = append([]model.UnassignedStop(nil), plan.Unassigned...)
	}
	m.version = next
	m.planID = plan.ID
	commitsApplied.Inc()

	if err := m.metrics.RecordSolve(coremetrics.SolveRecord{
		PlanID:      plan.ID,
		Duration:    plan.Solve.Duration,
		Iterations:  plan.Solve.Iterations,
		Assigned:    plan.StopCount(),
		Unassigned:  len(plan.Unassigned),
		Cost:        plan.Cost,
		Approximate: plan.Solve.Approximate,
		Scoped:      len(plan.Solve.Scope) > 0,
		Interrupted: plan.Solve.Interrupted,
		Time:        m.now(),
	}); err != nil {
		m.logger.Errorf("solve metrics error: %v", err)
	}
	if cr, ok := m.metrics.(coremetrics.CommitRecorder); ok {
		if err := cr.RecordCommit(coremetrics.CommitRecord{
			PlanID:     plan.ID,
			Version:    next,
			Routes:     len(plan.Routes),
			Stops:      plan.StopCount(),
			Unassigned: len(plan.Unassigned),
			Time:       m.now(),
		}); err != nil {
			m.logger.Errorf("commit metrics error: %v", err)
		}
	}
	return next, nil
}

// AdvanceStop validates and applies a stop lifecycle change. Repeating
// an already-applied transition is a no-op, not an error. Invalid
// transitions fail with InvalidTransitionError and leave state
// unchanged.
func (m *Machine) AdvanceStop(stopID string, to model.StopStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stops[stopID]
	if !ok {
		return ErrUnknownStop
	}
	if s.Status == to {
		return nil
	}
	if !canTransition(s.Status, to) {
		invalidTransitions.Inc()
		return &InvalidTransitionError{StopID: stopID, From: s.Status, To: to}
	}

	at := m.now()
	vid := m.stopVehicle[stopID]
	if to == model.StopArrived {
		s.ArrivedAt = at
	}
	// The arrival seen at the arrived transition is what window
	// feasibility is judged against; a completion without a prior
	// arrival report falls back to the completion time.
	arrival := s.ArrivedAt
	if arrival.IsZero() {
		arrival = at
	}
	ev := events.StopTransitioned{StopID: stopID, VehicleID: vid, From: s.Status, To: to, At: at}
	if to == model.StopArrived || to == model.StopCompleted {
		ev.RecordedArrival = arrival
	}
	m.record(ev)

	s.Status = to
	m.stops[stopID] = s

	if ser, ok := m.metrics.(coremetrics.StopEventRecorder); ok {
		rec := coremetrics.StopEventRecord{StopID: stopID, VehicleID: vid, Status: to.String(), Time: at}
		if to == model.StopCompleted {
			rec.TardinessSeconds = s.Window.TardinessSeconds(arrival)
		}
		if err := ser.RecordStopEvent(rec); err != nil {
			m.logger.Errorf("stop metrics error: %v", err)
		}
	}

	if to.Terminal() {
		delete(m.stopVehicle, stopID)
		m.finishRouteIfDone(vid)
	}
	return nil
}

// finishRouteIfDone completes the vehicle's route once every stop on it
// reached a terminal status, and hands the final record to the archive
// sink off the lock path so a slow store never blocks commits.
func (m *Machine) finishRouteIfDone(vehicleID string) {
	r, ok := m.routes[vehicleID]
	if !ok {
		return
	}
	for _, rs := range r.Stops {
		s, ok := m.stops[rs.Stop.ID]
		if !ok || !s.Status.Terminal() {
			return
		}
	}
	r.Status = model.RouteCompleted
	for i, rs := range r.Stops {
		if s, ok := m.stops[rs.Stop.ID]; ok {
			r.Stops[i].Stop = s
		}
	}
	delete(m.routes, vehicleID)
	if v, ok := m.vehicles[vehicleID]; ok && v.Status == model.VehicleOnRoute {
		v.Status = model.VehicleAvailable
		m.vehicles[vehicleID] = v
	}

	go func(route model.Route) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.archive.ArchiveRoute(ctx, route); err != nil {
			m.logger.Errorf("archive route for %s: %v", route.VehicleID, err)
		}
	}(r)
}

// RecordVehiclePosition updates a vehicle's live position. It takes the
// lock only briefly and never waits on re-optimization.
func (m *Machine) RecordVehiclePosition(vehicleID string, pos model.Coord, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return ErrUnknownVehicle
	}
	if at.Before(v.PositionAt) {
		// Out-of-order ping; the newer fix already applied.
		return nil
	}
	m.record(events.PositionPing{VehicleID: vehicleID, Position: pos, At: at})
	v.Position = pos
	v.PositionAt = at
	m.vehicles[vehicleID] = v
	return nil
}
