package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration   prometheus.Histogram
	plansBuilt      prometheus.Counter
	unassignedStops prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, prometheus.Counter, prometheus.Gauge) {
	dur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_duration_seconds",
		Help:    "Wall time of solver runs",
		Buckets: prometheus.DefBuckets,
	})
	built := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solver_plans_total",
		Help: "Number of plans produced by the solver",
	})
	unassigned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "solver_unassigned_stops",
		Help: "Stops the latest plan could not feasibly place",
	})
	return dur, built, unassigned
}

func init() {
	solveDuration, plansBuilt, unassignedStops = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers solver metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, plansBuilt, unassignedStops)
}

// ResetMetrics reinitializes collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, plansBuilt, unassignedStops = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
