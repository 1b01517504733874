package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/fleetcore/dispatchd/core/metrics"
)

// PromSink records dispatch activity in Prometheus metrics.
type PromSink struct {
	solves     *prometheus.CounterVec
	solveTime  prometheus.Histogram
	unassigned prometheus.Gauge
	commits    prometheus.Counter
	stopEvents *prometheus.CounterVec
	tardiness  prometheus.Histogram
	fleet      prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_solves_total",
			Help: "Solver runs by scope and outcome",
		}, []string{"scoped", "interrupted"}),
		solveTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_solve_duration_seconds",
			Help:    "Wall time of solver runs",
			Buckets: prometheus.DefBuckets,
		}),
		unassigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_unassigned_stops",
			Help: "Stops the latest plan left unassigned",
		}),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_commits_total",
			Help: "Plans committed to the state machine",
		}),
		stopEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_stop_events_total",
			Help: "Stop lifecycle transitions by resulting status",
		}, []string{"status"}),
		tardiness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_stop_tardiness_seconds",
			Help:    "Lateness of completed stops against their window",
			Buckets: []float64{0, 60, 300, 600, 1200, 1800, 3600},
		}),
		fleet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_fleet_size",
			Help: "Vehicles currently on duty",
		}),
	}
	collectors := []prometheus.Collector{
		s.solves, s.solveTime, s.unassigned, s.commits, s.stopEvents, s.tardiness, s.fleet,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordSolve observes one solver run.
func (s *PromSink) RecordSolve(rec coremetrics.SolveRecord) error {
	s.solves.WithLabelValues(boolLabel(rec.Scoped), boolLabel(rec.Interrupted)).Inc()
	s.solveTime.Observe(rec.Duration.Seconds())
	s.unassigned.Set(float64(rec.Unassigned))
	return nil
}

// RecordCommit counts a committed plan swap.
func (s *PromSink) RecordCommit(coremetrics.CommitRecord) error {
	s.commits.Inc()
	return nil
}

// RecordStopEvent counts a stop transition and observes tardiness on
// completion.
func (s *PromSink) RecordStopEvent(rec coremetrics.StopEventRecord) error {
	s.stopEvents.WithLabelValues(rec.Status).Inc()
	if rec.Status == "completed" {
		s.tardiness.Observe(float64(rec.TardinessSeconds))
	}
	return nil
}

// RecordFleetSize tracks the on-duty vehicle count.
func (s *PromSink) RecordFleetSize(size int) error {
	s.fleet.Set(float64(size))
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
