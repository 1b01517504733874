package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/model"
)

var aggNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func aggStop(id string, latest time.Time) model.Stop {
	return model.Stop{
		ID:             id,
		Kind:           model.KindDelivery,
		Location:       model.Coord{Lat: 48.86, Lon: 2.34},
		Demand:         model.Quantity{"box": 1},
		Window:         model.TimeWindow{Earliest: aggNow, Latest: latest},
		ServiceSeconds: 300,
	}
}

func complete(a *Aggregator, stopID, vehicleID string, arrived time.Time) {
	a.observe(events.StopTransitioned{
		StopID:          stopID,
		VehicleID:       vehicleID,
		From:            model.StopArrived,
		To:              model.StopCompleted,
		RecordedArrival: arrived,
		At:              arrived,
	})
}

func TestOnTimeRateAndTardiness(t *testing.T) {
	a := New(0)
	latest := aggNow.Add(time.Hour)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		a.observe(events.StopCreated{Stop: aggStop(id, latest), At: aggNow})
	}

	complete(a, "s1", "v1", latest.Add(-10*time.Minute))
	complete(a, "s2", "v1", latest)
	complete(a, "s3", "v1", latest.Add(2*time.Minute)) // 120 s late
	complete(a, "s4", "v1", latest.Add(4*time.Minute)) // 240 s late

	s := a.Summary()
	if s.Completions != 4 {
		t.Fatalf("completions = %d", s.Completions)
	}
	if s.OnTimeRate != 0.5 {
		t.Fatalf("on-time rate = %v, want 0.5", s.OnTimeRate)
	}
	if s.MeanTardinessSeconds != 90 {
		t.Fatalf("mean tardiness = %v, want 90", s.MeanTardinessSeconds)
	}
}

func TestSolveTimeQuantiles(t *testing.T) {
	a := New(0)
	for i := 1; i <= 100; i++ {
		a.observe(events.PlanCommitted{
			PlanID:    "p",
			SolveTime: time.Duration(i) * 10 * time.Millisecond,
			At:        aggNow,
		})
	}

	s := a.Summary()
	if s.SolveCount != 100 {
		t.Fatalf("solve count = %d", s.SolveCount)
	}
	if math.Abs(s.SolveMeanSeconds-0.505) > 1e-9 {
		t.Fatalf("mean = %v, want 0.505", s.SolveMeanSeconds)
	}
	if s.SolveP50Seconds < 0.49 || s.SolveP50Seconds > 0.52 {
		t.Fatalf("p50 = %v", s.SolveP50Seconds)
	}
	if s.SolveP95Seconds < 0.94 || s.SolveP95Seconds > 0.96 {
		t.Fatalf("p95 = %v", s.SolveP95Seconds)
	}
}

func TestRollingWindowEvictsOldSamples(t *testing.T) {
	a := New(10)
	latest := aggNow.Add(time.Hour)
	// 10 late completions pushed out by 10 on-time ones.
	for i := 0; i < 10; i++ {
		id := "late" + string(rune('0'+i))
		a.observe(events.StopCreated{Stop: aggStop(id, latest), At: aggNow})
		complete(a, id, "v1", latest.Add(time.Hour))
	}
	for i := 0; i < 10; i++ {
		id := "ok" + string(rune('0'+i))
		a.observe(events.StopCreated{Stop: aggStop(id, latest), At: aggNow})
		complete(a, id, "v1", latest.Add(-time.Minute))
	}

	s := a.Summary()
	if s.Completions != 10 {
		t.Fatalf("completions = %d, want window size 10", s.Completions)
	}
	if s.OnTimeRate != 1.0 {
		t.Fatalf("on-time rate = %v, old samples leaked into the window", s.OnTimeRate)
	}
}

func TestVehicleUtilization(t *testing.T) {
	a := New(0)
	a.now = func() time.Time { return aggNow.Add(5 * time.Hour) }

	v := model.Vehicle{ID: "v1"}
	a.observe(events.ShiftStarted{Vehicle: v, At: aggNow})

	latest := aggNow.Add(time.Hour)
	for _, id := range []string{"s1", "s2"} {
		a.observe(events.StopCreated{Stop: aggStop(id, latest), At: aggNow})
		complete(a, id, "v1", aggNow.Add(30*time.Minute))
	}
	a.observe(events.StopTransitioned{StopID: "s3", VehicleID: "v1", From: model.StopEnRoute, To: model.StopFailed, At: aggNow})
	a.observe(events.ShiftEnded{VehicleID: "v1", At: aggNow.Add(4 * time.Hour)})

	s := a.Summary()
	if len(s.Vehicles) != 1 {
		t.Fatalf("vehicles = %+v", s.Vehicles)
	}
	u := s.Vehicles[0]
	if u.Completed != 2 || u.Failed != 1 {
		t.Fatalf("counts = %+v", u)
	}
	if u.OnDutySeconds != 4*3600 {
		t.Fatalf("on-duty = %d, want shift start to end", u.OnDutySeconds)
	}
	if u.ServiceSeconds != 600 {
		t.Fatalf("service = %d, want two 300 s stops", u.ServiceSeconds)
	}
	want := 600.0 / (4 * 3600)
	if math.Abs(u.Utilization-want) > 1e-9 {
		t.Fatalf("utilization = %v, want %v", u.Utilization, want)
	}
}
