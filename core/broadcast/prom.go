package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesDelivered *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_messages_delivered_total",
		Help: "Messages delivered to in-process subscribers",
	}, []string{"role"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_messages_dropped_total",
		Help: "Messages dropped because the subscriber buffer was full",
	}, []string{"role"})
	return delivered, dropped
}

func init() {
	messagesDelivered, messagesDropped = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers broadcast metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(messagesDelivered, messagesDropped)
}

// ResetMetrics reinitializes collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	messagesDelivered, messagesDropped = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
