package planner

import (
	"time"

	"github.com/fleetcore/dispatchd/core/geo"
	"github.com/fleetcore/dispatchd/core/model"
)

// schedule is the simulated timeline of one candidate stop sequence.
type schedule struct {
	stops            []model.RouteStop
	travelSeconds    int
	distanceMeters   int
	tardinessSeconds int
	end              time.Time
	feasible         bool
}

// simulate walks a stop sequence for one vehicle, computing arrival
// times, lateness and the onboard load profile. A sequence is feasible
// when the load at every prefix fits the vehicle's capacity, no stop is
// later than cfg.MaxLateSeconds past its window and the route finishes
// within the shift.
func simulate(v model.Vehicle, seq []model.Stop, matrix *geo.Matrix, now time.Time, cfg Config) schedule {
	sched := schedule{feasible: true}
	if len(seq) == 0 {
		sched.end = now
		return sched
	}

	onboard := model.Quantity{}
	for _, s := range seq {
		if s.Kind == model.KindDelivery {
			onboard = onboard.Add(s.Demand)
		}
	}
	if !onboard.Fits(v.Capacity) {
		sched.feasible = false
	}

	t := now
	if t.Before(v.Shift.Earliest) {
		t = v.Shift.Earliest
	}
	pos := v.StartPosition()
	sched.stops = make([]model.RouteStop, 0, len(seq))

	for _, s := range seq {
		est := matrix.At(pos, s.Location)
		arrival := t.Add(time.Duration(est.Seconds) * time.Second)
		serviceStart := arrival
		if serviceStart.Before(s.Window.Earliest) {
			serviceStart = s.Window.Earliest
		}
		tardy := s.Window.TardinessSeconds(arrival)
		if tardy > cfg.MaxLateSeconds {
			sched.feasible = false
		}

		sched.travelSeconds += est.Seconds
		sched.distanceMeters += est.Meters
		sched.tardinessSeconds += tardy
		sched.stops = append(sched.stops, model.RouteStop{
			Stop:             s,
			TravelSeconds:    est.Seconds,
			DistanceMeters:   est.Meters,
			ProjectedArrival: arrival,
			TardinessSeconds: tardy,
		})

		switch s.Kind {
		case model.KindDelivery:
			onboard = onboard.Sub(s.Demand)
		case model.KindPickup:
			onboard = onboard.Add(s.Demand)
			if !onboard.Fits(v.Capacity) {
				sched.feasible = false
			}
		}

		t = serviceStart.Add(time.Duration(s.ServiceSeconds) * time.Second)
		pos = s.Location
	}

	sched.end = t
	if t.After(v.Shift.Latest) {
		sched.feasible = false
	}
	return sched
}
