// Package trigger decides whether and when live events warrant another
// solver run. Stop churn is debounced and solved in geographic scope;
// time-window breach risk bypasses the debounce and may cancel an
// in-flight solve over the same vehicles; plain path deviations only
// refresh ETAs.
package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
	"github.com/fleetcore/dispatchd/core/planner"
	"github.com/fleetcore/dispatchd/core/state"
)

// Manager consumes the event stream and schedules solver runs. The
// decision loop is single-threaded; solves run on their own goroutine
// so the loop keeps absorbing events.
type Manager struct {
	cfg     Config
	machine *state.Machine
	builder *planner.Builder
	solver  *planner.Solver
	log     logger.Logger

	mu            sync.Mutex
	pendingScope  map[string]bool // vehicles touched during the debounce window
	pendingStops  map[string]bool
	pendingFull   bool
	inflightScope map[string]bool
	cancelSolve   context.CancelFunc
	wg            sync.WaitGroup
}

// NewManager creates a trigger manager.
func NewManager(cfg Config, machine *state.Machine, builder *planner.Builder, solver *planner.Solver, log logger.Logger) *Manager {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Manager{
		cfg:          cfg,
		machine:      machine,
		builder:      builder,
		solver:       solver,
		log:          log,
		pendingScope: make(map[string]bool),
		pendingStops: make(map[string]bool),
	}
}

// Run consumes events until the context is cancelled. The startup
// full-fleet solve is the caller's responsibility (see RequestFullSolve)
// so tests can drive the loop deterministically.
func (t *Manager) Run(ctx context.Context, evs <-chan events.Event) {
	debounce := time.Duration(t.cfg.DebounceSeconds) * time.Second
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			if armed && !timer.Stop() {
				<-timer.C
			}
			t.wg.Wait()
			return
		case ev, ok := <-evs:
			if !ok {
				t.wg.Wait()
				return
			}
			if t.handle(ctx, ev) && !armed {
				timer.Reset(debounce)
				armed = true
			}
		case <-timer.C:
			armed = false
			scope, stops, full := t.drainPending()
			if full || len(scope) > 0 || len(stops) > 0 {
				t.startSolve(ctx, scope, stops, full, false)
			}
		}
	}
}

// handle applies the trigger policy for one event. It returns true when
// the event should (re)arm the debounce timer.
func (t *Manager) handle(ctx context.Context, ev events.Event) bool {
	switch e := ev.(type) {
	case events.StopCreated:
		t.accumulate(e.Stop.Location, e.Stop.ID)
		return true
	case events.StopCancelled:
		snap := t.machine.Snapshot()
		if s := snap.StopByID(e.StopID); s != nil {
			t.accumulate(s.Location, e.StopID)
		}
		return true
	case events.ShiftStarted:
		t.mu.Lock()
		t.pendingScope[e.Vehicle.ID] = true
		t.mu.Unlock()
		return true
	case events.ShiftEnded:
		// Orphaned stops may need any vehicle in the fleet.
		t.mu.Lock()
		t.pendingFull = true
		t.mu.Unlock()
		return true
	case events.DelayDetected:
		t.onDelay(ctx, e)
		return false
	case events.PositionPing:
		t.onPing(ctx, e)
		return false
	case events.ResolveRequested:
		t.log.Infof("manual full-fleet re-solve requested by %s", e.Requester)
		t.startSolve(ctx, nil, nil, true, true)
		return false
	default:
		return false
	}
}

// accumulate adds the changed stop and every vehicle near it to the
// debounced scope.
func (t *Manager) accumulate(loc model.Coord, stopID string) {
	snap := t.machine.Snapshot()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingStops[stopID] = true
	for _, id := range t.nearVehicles(snap, loc) {
		t.pendingScope[id] = true
	}
}

// nearVehicles returns vehicles whose position or route comes within
// the scope radius of the coordinate, plus idle vehicles that could
// absorb new work.
func (t *Manager) nearVehicles(snap state.Snapshot, loc model.Coord) []string {
	radius := float64(t.cfg.ScopeRadiusMeters)
	var ids []string
	for _, v := range snap.Vehicles {
		if v.Status == model.VehicleOffShift {
			continue
		}
		if v.Status == model.VehicleAvailable {
			ids = append(ids, v.ID)
			continue
		}
		if v.StartPosition().GreatCircleMeters(loc) <= radius {
			ids = append(ids, v.ID)
			continue
		}
		if r := snap.RouteFor(v.ID); r != nil {
			for _, rs := range r.Stops {
				if rs.Stop.Location.GreatCircleMeters(loc) <= radius {
					ids = append(ids, v.ID)
					break
				}
			}
		}
	}
	return ids
}

// onDelay escalates to an immediate scoped re-solve when the projected
// arrival breaches the stop's window past tolerance; otherwise it only
// refreshes ETAs for that vehicle.
func (t *Manager) onDelay(ctx context.Context, e events.DelayDetected) {
	snap := t.machine.Snapshot()
	s := snap.StopByID(e.StopID)
	if s == nil {
		return
	}
	tolerance := time.Duration(t.cfg.BreachToleranceSeconds) * time.Second
	if e.ProjectedArrival.After(s.Window.Latest.Add(tolerance)) {
		t.log.Warnf("window breach risk on stop %s (vehicle %s), immediate re-solve", e.StopID, e.VehicleID)
		t.startSolve(ctx, []string{e.VehicleID}, nil, false, true)
		return
	}
	t.refreshETA(ctx, e.VehicleID)
}

// onPing checks the ping against the expected path. Large detours get
// an ETA refresh; detours that also threaten the next window escalate
// to the breach path.
func (t *Manager) onPing(ctx context.Context, e events.PositionPing) {
	snap := t.machine.Snapshot()
	r := snap.RouteFor(e.VehicleID)
	if r == nil || len(r.Stops) == 0 {
		return
	}
	next := nextOpenStop(snap, r)
	if next == nil {
		return
	}
	directMeters := e.Position.GreatCircleMeters(next.Stop.Location)
	if directMeters <= float64(next.DistanceMeters)+float64(t.cfg.DeviationMeters) {
		return
	}
	// Rough ETA from the deviated position at fallback speed.
	etaSeconds := directMeters / (40.0 * 1000 / 3600)
	eta := e.At.Add(time.Duration(etaSeconds) * time.Second)
	tolerance := time.Duration(t.cfg.BreachToleranceSeconds) * time.Second
	if eta.After(next.Stop.Window.Latest.Add(tolerance)) {
		t.log.Warnf("deviation of vehicle %s threatens stop %s, immediate re-solve", e.VehicleID, next.Stop.ID)
		t.startSolve(ctx, []string{e.VehicleID}, nil, false, true)
		return
	}
	t.refreshETA(ctx, e.VehicleID)
}

func nextOpenStop(snap state.Snapshot, r *model.Route) *model.RouteStop {
	for i := range r.Stops {
		s := snap.StopByID(r.Stops[i].Stop.ID)
		if s != nil && !s.Status.Terminal() && s.Status != model.StopCompleted {
			return &r.Stops[i]
		}
	}
	return nil
}

func (t *Manager) drainPending() (scope []string, stops []string, full bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.pendingScope {
		scope = append(scope, id)
	}
	for id := range t.pendingStops {
		stops = append(stops, id)
	}
	full = t.pendingFull
	t.pendingScope = make(map[string]bool)
	t.pendingStops = make(map[string]bool)
	t.pendingFull = false
	return scope, stops, full
}

// RequestFullSolve runs a synchronous full-fleet solve-and-commit. Used
// at startup and for manual dispatcher requests that need a result.
func (t *Manager) RequestFullSolve(ctx context.Context) error {
	return t.solveAndCommit(ctx, nil, nil, true, false)
}

// startSolve launches a solve on its own goroutine. Immediate triggers
// cancel an in-flight solve over an overlapping vehicle set: the stale
// optimization falls back to its best-so-far plan, whose commit then
// loses the version race by design.
func (t *Manager) startSolve(ctx context.Context, scope, stops []string, full, immediate bool) {
	t.mu.Lock()
	if immediate && t.cancelSolve != nil && overlaps(t.inflightScope, scope, full) {
		t.log.Infof("cancelling in-flight solve for urgent trigger")
		t.cancelSolve()
	}
	solveCtx, cancel := context.WithCancel(ctx)
	t.cancelSolve = cancel
	t.inflightScope = make(map[string]bool, len(scope))
	for _, id := range scope {
		t.inflightScope[id] = true
	}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		if err := t.solveAndCommit(solveCtx, scope, stops, full, false); err != nil {
			t.log.Errorf("re-solve failed: %v", err)
		}
	}()
}

func overlaps(inflight map[string]bool, scope []string, full bool) bool {
	if len(inflight) == 0 {
		return false
	}
	if full {
		return true
	}
	for _, id := range scope {
		if inflight[id] {
			return true
		}
	}
	return false
}

// solveAndCommit builds a model from a fresh snapshot, solves it and
// commits the plan, retrying with a rebuilt model when the commit loses
// an optimistic-concurrency race.
func (t *Manager) solveAndCommit(ctx context.Context, scope, stops []string, full, refreshOnly bool) error {
	budget := time.Duration(t.cfg.SolveBudgetMS) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= t.cfg.CommitRetries; attempt++ {
		snap := t.machine.Snapshot()
		m, err := t.builder.Build(ctx, snap.Vehicles, snap.ActiveStops(), snap.Version, time.Now().UTC())
		if err != nil {
			return err
		}
		m.Incumbent = snap.Routes
		if !full && len(scope) > 0 {
			m = m.Scoped(scope, scopedStopIDs(snap, scope, stops))
		}

		var plan *model.Plan
		if refreshOnly {
			plan = t.solver.Refresh(ctx, m)
		} else {
			plan = t.solver.Solve(ctx, m, budget)
		}

		if _, err := t.machine.CommitPlan(plan); err != nil {
			var stale *state.StaleModelError
			if errors.As(err, &stale) {
				t.log.Warnf("commit lost version race (%v), rebuilding model", err)
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// refreshETA recomputes the vehicle's schedule from its live position
// without searching for a better assignment.
func (t *Manager) refreshETA(ctx context.Context, vehicleID string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.solveAndCommit(ctx, []string{vehicleID}, nil, false, true); err != nil {
			t.log.Errorf("eta refresh for %s failed: %v", vehicleID, err)
		}
	}()
}

// scopedStopIDs gathers the stops a scoped solve may touch: those on
// the scoped vehicles' routes plus every unrouted pending stop.
func scopedStopIDs(snap state.Snapshot, scope []string, changed []string) []string {
	ids := make(map[string]bool, len(changed))
	for _, id := range changed {
		ids[id] = true
	}
	inScope := make(map[string]bool, len(scope))
	for _, id := range scope {
		inScope[id] = true
	}
	routed := make(map[string]bool)
	for _, r := range snap.Routes {
		for _, rs := range r.Stops {
			routed[rs.Stop.ID] = true
			if inScope[r.VehicleID] {
				ids[rs.Stop.ID] = true
			}
		}
	}
	for _, s := range snap.Stops {
		if !s.Status.Terminal() && !routed[s.ID] {
			ids[s.ID] = true
		}
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}
