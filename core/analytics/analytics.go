// Package analytics maintains read-side dispatch statistics from the
// event feed: on-time delivery rate, per-vehicle utilization and the
// solve-time distribution. The aggregator is a passive subscriber; it
// never sits on the commit path.
package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/model"
)

// defaultWindow bounds the rolling completion and solve samples.
const defaultWindow = 500

type completion struct {
	stopID           string
	vehicleID        string
	tardinessSeconds int
	at               time.Time
}

type vehicleStats struct {
	completed      int
	failed         int
	serviceSeconds int64
	onDutySeconds  int64
	shiftStart     time.Time
	onDuty         bool
}

// Aggregator accumulates dispatch statistics over a rolling window.
type Aggregator struct {
	window int

	mu          sync.RWMutex
	stops       map[string]model.Stop // windows and service times by stop ID
	completions []completion
	solveSecs   []float64
	vehicles    map[string]*vehicleStats
	now         func() time.Time
}

// New creates an Aggregator with the given rolling window size,
// defaulting to 500 samples when window is not positive.
func New(window int) *Aggregator {
	if window <= 0 {
		window = defaultWindow
	}
	return &Aggregator{
		window:   window,
		stops:    make(map[string]model.Stop),
		vehicles: make(map[string]*vehicleStats),
		now:      time.Now,
	}
}

// Run consumes the event feed until ctx is cancelled or the channel
// closes.
func (a *Aggregator) Run(ctx context.Context, evs <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			a.observe(ev)
		}
	}
}

func (a *Aggregator) observe(ev events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := ev.(type) {
	case events.StopCreated:
		a.stops[e.Stop.ID] = e.Stop
	case events.StopCancelled:
		delete(a.stops, e.StopID)
	case events.ShiftStarted:
		vs := a.vehicle(e.Vehicle.ID)
		vs.onDuty = true
		vs.shiftStart = e.At
	case events.ShiftEnded:
		vs := a.vehicle(e.VehicleID)
		if vs.onDuty && !vs.shiftStart.IsZero() {
			vs.onDutySeconds += int64(e.At.Sub(vs.shiftStart) / time.Second)
		}
		vs.onDuty = false
	case events.StopTransitioned:
		a.observeTransition(e)
	case events.PlanCommitted:
		a.solveSecs = append(a.solveSecs, e.SolveTime.Seconds())
		if len(a.solveSecs) > a.window {
			a.solveSecs = a.solveSecs[len(a.solveSecs)-a.window:]
		}
	}
}

func (a *Aggregator) observeTransition(e events.StopTransitioned) {
	vs := a.vehicle(e.VehicleID)
	switch e.To {
	case model.StopFailed:
		vs.failed++
	case model.StopCompleted:
		vs.completed++
		c := completion{stopID: e.StopID, vehicleID: e.VehicleID, at: e.At}
		if s, ok := a.stops[e.StopID]; ok {
			vs.serviceSeconds += int64(s.ServiceSeconds)
			c.tardinessSeconds = s.Window.TardinessSeconds(e.RecordedArrival)
		}
		a.completions = append(a.completions, c)
		if len(a.completions) > a.window {
			a.completions = a.completions[len(a.completions)-a.window:]
		}
	}
}

func (a *Aggregator) vehicle(id string) *vehicleStats {
	vs, ok := a.vehicles[id]
	if !ok {
		vs = &vehicleStats{}
		a.vehicles[id] = vs
	}
	return vs
}

// VehicleUtilization summarizes one vehicle's workload.
type VehicleUtilization struct {
	VehicleID      string  `json:"vehicle_id"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	OnDutySeconds  int64   `json:"on_duty_seconds"`
	ServiceSeconds int64   `json:"service_seconds"`
	Utilization    float64 `json:"utilization"` // service time over on-duty time
}

// Summary is a point-in-time view of the rolling statistics.
type Summary struct {
	Completions          int                  `json:"completions"`
	OnTimeRate           float64              `json:"on_time_rate"`
	MeanTardinessSeconds float64              `json:"mean_tardiness_seconds"`
	SolveCount           int                  `json:"solve_count"`
	SolveMeanSeconds     float64              `json:"solve_mean_seconds"`
	SolveP50Seconds      float64              `json:"solve_p50_seconds"`
	SolveP95Seconds      float64              `json:"solve_p95_seconds"`
	Vehicles             []VehicleUtilization `json:"vehicles"`
}

// Summary computes statistics over the current window.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := Summary{Completions: len(a.completions), SolveCount: len(a.solveSecs)}

	if n := len(a.completions); n > 0 {
		onTime := 0
		tardy := make([]float64, 0, n)
		for _, c := range a.completions {
			if c.tardinessSeconds == 0 {
				onTime++
			}
			tardy = append(tardy, float64(c.tardinessSeconds))
		}
		out.OnTimeRate = float64(onTime) / float64(n)
		out.MeanTardinessSeconds = stat.Mean(tardy, nil)
	}

	if len(a.solveSecs) > 0 {
		secs := append([]float64(nil), a.solveSecs...)
		sort.Float64s(secs)
		out.SolveMeanSeconds = stat.Mean(secs, nil)
		out.SolveP50Seconds = stat.Quantile(0.5, stat.Empirical, secs, nil)
		out.SolveP95Seconds = stat.Quantile(0.95, stat.Empirical, secs, nil)
	}

	for id, vs := range a.vehicles {
		u := VehicleUtilization{
			VehicleID:      id,
			Completed:      vs.completed,
			Failed:         vs.failed,
			OnDutySeconds:  vs.onDutySeconds,
			ServiceSeconds: vs.serviceSeconds,
		}
		if vs.onDuty && !vs.shiftStart.IsZero() {
			u.OnDutySeconds += int64(a.now().Sub(vs.shiftStart) / time.Second)
		}
		if u.OnDutySeconds > 0 {
			u.Utilization = float64(u.ServiceSeconds) / float64(u.OnDutySeconds)
		}
		out.Vehicles = append(out.Vehicles, u)
	}
	sort.Slice(out.Vehicles, func(i, j int) bool { return out.Vehicles[i].VehicleID < out.Vehicles[j].VehicleID })
	return out
}
