package planner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
)

// Solver produces plans from VRP models under a time budget. It is
// stateless between runs; concurrent solves on separate models are safe.
type Solver struct {
	cfg Config
	log logger.Logger
}

// NewSolver creates a Solver with the given configuration.
func NewSolver(cfg Config, log logger.Logger) *Solver {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Solver{cfg: cfg, log: log}
}

// Solve builds an initial feasible plan by greedy insertion and then
// improves it with local search until the budget elapses, the context
// is cancelled or no improving move remains. It never returns an
// infeasible plan: cancellation yields the best feasible plan so far,
// and stops without any feasible placement are returned in the
// unassigned list rather than raising.
func (s *Solver) Solve(ctx context.Context, m *Model, budget time.Duration) *model.Plan {
	start := time.Now()
	if budget <= 0 {
		budget = time.Duration(s.cfg.TimeBudgetMS) * time.Millisecond
	}
	deadline := start.Add(budget)

	sol := construct(m, s.cfg)
	stats := improve(ctx, m, s.cfg, sol, deadline)
	if stats.interrupted {
		s.log.Infof("solve interrupted after %v, returning best-so-far", time.Since(start))
	}

	plan := s.assemble(m, sol, start, stats)
	solveDuration.Observe(time.Since(start).Seconds())
	plansBuilt.Inc()
	unassignedStops.Set(float64(len(plan.Unassigned)))
	s.log.Debugw("solve finished", map[string]any{
		"plan_id":    plan.ID,
		"routes":     len(plan.Routes),
		"stops":      plan.StopCount(),
		"unassigned": len(plan.Unassigned),
		"cost":       plan.Cost,
		"duration":   time.Since(start).String(),
	})
	return plan
}

// Refresh rebuilds schedules for the incumbent assignment without
// searching for a better one. It backs the lightweight ETA recompute
// path: current positions and travel times flow into projected
// arrivals, but stops are not moved between routes unless their seeded
// route became infeasible.
func (s *Solver) Refresh(ctx context.Context, m *Model) *model.Plan {
	start := time.Now()
	sol := construct(m, s.cfg)
	return s.assemble(m, sol, start, searchStats{})
}

func (s *Solver) assemble(m *Model, sol *solution, start time.Time, stats searchStats) *model.Plan {
	plan := &model.Plan{
		ID:          uuid.NewString(),
		BaseVersion: m.BaseVersion,
		CreatedAt:   m.Now,
		Cost:        sol.key(s.cfg).cost,
		Solve: model.SolveInfo{
			Duration:    time.Since(start),
			Iterations:  stats.iterations,
			Improved:    stats.improved,
			Interrupted: stats.interrupted,
			Approximate: m.Matrix != nil && m.Matrix.Approximate,
			Scope:       m.Scope,
		},
	}
	for vi, seq := range sol.routes {
		if len(seq) == 0 {
			continue
		}
		sched := sol.scheds[vi]
		plan.Routes = append(plan.Routes, model.Route{
			VehicleID:           m.Vehicles[vi].ID,
			Stops:               sched.stops,
			TotalTravelSeconds:  sched.travelSeconds,
			TotalDistanceMeters: sched.distanceMeters,
			ProjectedEnd:        sched.end,
			Status:              model.RouteDraft,
		})
	}
	plan.Unassigned = append(plan.Unassigned, m.Unassignable...)
	plan.Unassigned = append(plan.Unassigned, sol.unassigned...)
	return plan
}
