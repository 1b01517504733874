package state

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commitsApplied     prometheus.Counter
	staleCommits       prometheus.Counter
	invalidTransitions prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	commits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_commits_total",
		Help: "Number of plans committed to the state machine",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_stale_commits_total",
		Help: "Number of commits rejected by the optimistic concurrency check",
	})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_invalid_transitions_total",
		Help: "Number of rejected stop status transitions",
	})
	return commits, stale, invalid
}

func init() {
	commitsApplied, staleCommits, invalidTransitions = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers state metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commitsApplied, staleCommits, invalidTransitions)
}

// ResetMetrics reinitializes collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commitsApplied, staleCommits, invalidTransitions = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
