package metrics

import (
	coremetrics "github.com/fleetcore/dispatchd/core/metrics"
	"github.com/fleetcore/dispatchd/infra/logger"
)

// NewSink builds the metrics sink stack described by cfg: a MultiSink
// over the enabled backends, or a NopSink when nothing is enabled. The
// Prometheus exposition server is started separately by the caller.
func NewSink(cfg coremetrics.Config) coremetrics.MetricsSink {
	log := logger.New("metrics")
	var sinks []coremetrics.MetricsSink

	if cfg.PrometheusEnabled {
		prom, err := NewPromSink(cfg)
		if err != nil {
			log.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, prom)
		}
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}

	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}
	case 1:
		return sinks[0]
	default:
		return NewMultiSink(sinks...)
	}
}
