package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/logger"
	"github.com/fleetcore/dispatchd/core/model"
)

var solveNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func testVehicle(id string, capacity int) model.Vehicle {
	return model.Vehicle{
		ID:       id,
		Capacity: model.Quantity{"box": capacity},
		Shift:    model.TimeWindow{Earliest: solveNow.Add(-time.Hour), Latest: solveNow.Add(8 * time.Hour)},
		Depot:    model.Coord{Lat: 48.8566, Lon: 2.3522},
		Status:   model.VehicleAvailable,
	}
}

func testStop(id string, lat, lon float64, demand int, open, close time.Duration) model.Stop {
	return model.Stop{
		ID:       id,
		Kind:     model.KindDelivery,
		Location: model.Coord{Lat: lat, Lon: lon},
		Demand:   model.Quantity{"box": demand},
		Window: model.TimeWindow{
			Earliest: solveNow.Add(open),
			Latest:   solveNow.Add(close),
		},
		ServiceSeconds: 120,
		Status:         model.StopPending,
	}
}

func buildModel(t *testing.T, vehicles []model.Vehicle, stops []model.Stop) *Model {
	t.Helper()
	gc := geo.NewGreatCircle(0)
	mb := geo.NewMatrixBuilder(gc, geo.NewPairCache(0), gc, logger.Nop{})
	b := NewBuilder(mb, nil, logger.Nop{})
	m, err := b.Build(context.Background(), vehicles, stops, 7, solveNow)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return m
}

func solve(t *testing.T, m *Model) *model.Plan {
	t.Helper()
	cfg := Config{}
	cfg.SetDefaults()
	return NewSolver(cfg, logger.Nop{}).Solve(context.Background(), m, 500*time.Millisecond)
}

func TestSolveDropsStopOverCapacity(t *testing.T) {
	vehicles := []model.Vehicle{testVehicle("v1", 10)}
	stops := []model.Stop{
		testStop("s1", 48.860, 2.340, 4, 0, 4*time.Hour),
		testStop("s2", 48.865, 2.355, 4, 0, 4*time.Hour),
		testStop("s3", 48.870, 2.360, 4, 0, 4*time.Hour),
	}
	plan := solve(t, buildModel(t, vehicles, stops))

	if got := plan.StopCount(); got != 2 {
		t.Fatalf("assigned %d stops, want 2", got)
	}
	if len(plan.Unassigned) != 1 {
		t.Fatalf("unassigned %d stops, want 1: %+v", len(plan.Unassigned), plan.Unassigned)
	}
	if plan.Unassigned[0].Reason != model.ReasonNoCapacity {
		t.Fatalf("unassigned reason = %q, want %q", plan.Unassigned[0].Reason, model.ReasonNoCapacity)
	}
	if plan.BaseVersion != 7 {
		t.Fatalf("plan base version = %d, want 7", plan.BaseVersion)
	}
}

func TestBuildFlagsExpiredWindow(t *testing.T) {
	vehicles := []model.Vehicle{testVehicle("v1", 20)}
	stops := []model.Stop{
		testStop("ok1", 48.860, 2.340, 2, 0, 4*time.Hour),
		testStop("late", 48.865, 2.355, 2, -2*time.Hour, -30*time.Minute),
		testStop("ok2", 48.870, 2.360, 2, 0, 4*time.Hour),
	}
	m := buildModel(t, vehicles, stops)

	if len(m.Unassignable) != 1 || m.Unassignable[0].Stop.ID != "late" {
		t.Fatalf("unassignable = %+v, want only stop late", m.Unassignable)
	}
	if m.Unassignable[0].Reason != model.ReasonWindowExpired {
		t.Fatalf("reason = %q, want %q", m.Unassignable[0].Reason, model.ReasonWindowExpired)
	}

	plan := solve(t, m)
	if got := plan.StopCount(); got != 2 {
		t.Fatalf("assigned %d stops, want 2", got)
	}
	if len(plan.Unassigned) != 1 || plan.Unassigned[0].Stop.ID != "late" {
		t.Fatalf("plan must carry build-time rejections: %+v", plan.Unassigned)
	}
}

func TestBuildFiltersOffDutyAndTerminal(t *testing.T) {
	off := testVehicle("off", 10)
	off.Status = model.VehicleOffShift
	done := testStop("done", 48.860, 2.340, 1, 0, 4*time.Hour)
	done.Status = model.StopCompleted

	m := buildModel(t,
		[]model.Vehicle{testVehicle("v1", 10), off},
		[]model.Stop{testStop("s1", 48.861, 2.341, 1, 0, 4*time.Hour), done},
	)
	if len(m.Vehicles) != 1 || m.Vehicles[0].ID != "v1" {
		t.Fatalf("vehicles = %+v, want only v1", m.Vehicles)
	}
	if len(m.Stops) != 1 || m.Stops[0].ID != "s1" {
		t.Fatalf("stops = %+v, want only s1", m.Stops)
	}
}

func TestBuildFailsWithoutVehicles(t *testing.T) {
	gc := geo.NewGreatCircle(0)
	mb := geo.NewMatrixBuilder(gc, nil, gc, logger.Nop{})
	b := NewBuilder(mb, nil, logger.Nop{})
	_, err := b.Build(context.Background(), nil, []model.Stop{testStop("s1", 48.86, 2.34, 1, 0, time.Hour)}, 0, solveNow)
	var buildErr *ModelBuildError
	if err == nil {
		t.Fatalf("expected build error with stops and no fleet")
	}
	if !errors.As(err, &buildErr) {
		t.Fatalf("error type = %T, want *ModelBuildError", err)
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	vehicles := []model.Vehicle{testVehicle("v1", 8), testVehicle("v2", 8)}
	var stops []model.Stop
	for i := 0; i < 10; i++ {
		stops = append(stops, testStop(
			fmt.Sprintf("s%02d", i),
			48.84+float64(i)*0.004, 2.33+float64(i%3)*0.01,
			2, 0, 6*time.Hour,
		))
	}
	m := buildModel(t, vehicles, stops)

	a := solve(t, m)
	b := solve(t, m)
	if a.Cost != b.Cost {
		t.Fatalf("cost differs across runs: %d vs %d", a.Cost, b.Cost)
	}
	if fingerprint(a) != fingerprint(b) {
		t.Fatalf("assignment differs across runs:\n%s\nvs\n%s", fingerprint(a), fingerprint(b))
	}
}

func TestWarmStartDoesNotRegress(t *testing.T) {
	vehicles := []model.Vehicle{testVehicle("v1", 8), testVehicle("v2", 8)}
	var stops []model.Stop
	for i := 0; i < 8; i++ {
		stops = append(stops, testStop(
			fmt.Sprintf("s%02d", i),
			48.84+float64(i)*0.005, 2.33+float64(i%2)*0.012,
			2, 0, 6*time.Hour,
		))
	}
	m := buildModel(t, vehicles, stops)
	first := solve(t, m)

	m.Incumbent = first.Routes
	second := solve(t, m)
	if second.Cost > first.Cost {
		t.Fatalf("warm-started re-solve regressed: %d -> %d", first.Cost, second.Cost)
	}
	if second.StopCount() < first.StopCount() {
		t.Fatalf("warm-started re-solve dropped stops: %d -> %d", first.StopCount(), second.StopCount())
	}
}

func TestSolveReturnsFeasiblePlanWhenCancelled(t *testing.T) {
	vehicles := []model.Vehicle{testVehicle("v1", 20)}
	var stops []model.Stop
	for i := 0; i < 6; i++ {
		stops = append(stops, testStop(fmt.Sprintf("s%d", i), 48.85+float64(i)*0.004, 2.34, 1, 0, 6*time.Hour))
	}
	m := buildModel(t, vehicles, stops)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{}
	cfg.SetDefaults()
	plan := NewSolver(cfg, logger.Nop{}).Solve(ctx, m, time.Second)

	if !plan.Solve.Interrupted {
		t.Fatalf("cancelled solve should be flagged interrupted")
	}
	if plan.StopCount()+len(plan.Unassigned) != len(stops) {
		t.Fatalf("plan lost stops: %d routed + %d unassigned of %d", plan.StopCount(), len(plan.Unassigned), len(stops))
	}
	capacities := map[string]model.Quantity{"v1": vehicles[0].Capacity}
	for _, r := range plan.Routes {
		if !r.FitsCapacity(capacities[r.VehicleID]) {
			t.Fatalf("cancelled solve produced an infeasible route for %s", r.VehicleID)
		}
	}
}

func TestLateStopsPreferPriority(t *testing.T) {
	// Capacity fits only one of two identical stops; the higher
	// priority one must win the slot.
	vehicles := []model.Vehicle{testVehicle("v1", 3)}
	low := testStop("low", 48.860, 2.340, 3, 0, 4*time.Hour)
	high := testStop("high", 48.8601, 2.3401, 3, 0, 4*time.Hour)
	high.Priority = 2

	plan := solve(t, buildModel(t, vehicles, []model.Stop{low, high}))
	if got := plan.StopCount(); got != 1 {
		t.Fatalf("assigned %d stops, want 1", got)
	}
	if plan.Routes[0].Stops[0].Stop.ID != "high" {
		t.Fatalf("priority stop lost the slot to %s", plan.Routes[0].Stops[0].Stop.ID)
	}
}

func TestScopedModelRestrictsFleet(t *testing.T) {
	vehicles := []model.Vehicle{testVehicle("v1", 8), testVehicle("v2", 8)}
	stops := []model.Stop{
		testStop("s1", 48.86, 2.34, 1, 0, 4*time.Hour),
		testStop("s2", 48.87, 2.36, 1, 0, 4*time.Hour),
	}
	m := buildModel(t, vehicles, stops)
	sub := m.Scoped([]string{"v2"}, []string{"s2"})

	if len(sub.Vehicles) != 1 || sub.Vehicles[0].ID != "v2" {
		t.Fatalf("scoped vehicles = %+v", sub.Vehicles)
	}
	if len(sub.Stops) != 1 || sub.Stops[0].ID != "s2" {
		t.Fatalf("scoped stops = %+v", sub.Stops)
	}
	plan := solve(t, sub)
	if len(plan.Solve.Scope) != 1 || plan.Solve.Scope[0] != "v2" {
		t.Fatalf("plan scope = %v, want [v2]", plan.Solve.Scope)
	}
}

func fingerprint(p *model.Plan) string {
	var sb strings.Builder
	for _, r := range p.Routes {
		sb.WriteString(r.VehicleID)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(r.StopIDs(), ","))
		sb.WriteByte(';')
	}
	return sb.String()
}
