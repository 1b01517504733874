package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/fleetcore/dispatchd/core/forecast"
	"github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
	"github.com/fleetcore/dispatchd/core/planner"
)

// RunScenario builds and solves the scenario, then checks the expected
// assignment outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	vehicles := make([]model.Vehicle, len(sc.Vehicles))
	for i, v := range sc.Vehicles {
		vehicles[i] = v.ToModel(now)
	}
	stops := make([]model.Stop, len(sc.Stops))
	for i, s := range sc.Stops {
		stops[i] = s.ToModel(now)
	}

	gc := geo.NewGreatCircle(0)
	matrix := geo.NewMatrixBuilder(gc, geo.NewPairCache(0), gc, logger.Nop{})
	builder := planner.NewBuilder(matrix, forecast.Nop{}, logger.Nop{})

	m, err := builder.Build(context.Background(), vehicles, stops, 0, now)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}

	cfg := planner.Config{}
	cfg.SetDefaults()
	solver := planner.NewSolver(cfg, logger.Nop{})
	plan := solver.Solve(context.Background(), m, 500*time.Millisecond)

	assigned := plan.StopCount()
	if assigned != sc.Expected.Assigned {
		t.Fatalf("assigned %d stops, expected %d", assigned, sc.Expected.Assigned)
	}
	if len(plan.Unassigned) != sc.Expected.Unassigned {
		t.Fatalf("unassigned %d stops, expected %d", len(plan.Unassigned), sc.Expected.Unassigned)
	}

	unassignedByID := make(map[string]model.UnassignedReason, len(plan.Unassigned))
	for _, u := range plan.Unassigned {
		unassignedByID[u.Stop.ID] = u.Reason
	}
	for i, id := range sc.Expected.UnassignedID {
		reason, ok := unassignedByID[id]
		if !ok {
			t.Fatalf("expected stop %s to be unassigned, got %v", id, plan.Unassigned)
		}
		if i < len(sc.Expected.Reasons) && string(reason) != sc.Expected.Reasons[i] {
			t.Fatalf("stop %s unassigned for %q, expected %q", id, reason, sc.Expected.Reasons[i])
		}
	}

	// Every route must respect capacity at every prefix.
	capacities := make(map[string]model.Quantity, len(vehicles))
	for _, v := range vehicles {
		capacities[v.ID] = v.Capacity
	}
	for _, r := range plan.Routes {
		if !r.FitsCapacity(capacities[r.VehicleID]) {
			t.Fatalf("route for %s exceeds capacity", r.VehicleID)
		}
	}
}
