package metrics

import coremetrics "github.com/fleetcore/dispatchd/core/metrics"

// MultiSink fans records out to multiple sinks. Optional capabilities
// are discovered by type assertion, so a sink only receives the record
// kinds it implements. A failing sink never starves the others; the
// first error is reported after every sink has seen the record.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the record to all sinks.
func (m *MultiSink) RecordSolve(rec coremetrics.SolveRecord) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordSolve(rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordCommit forwards commit records.
func (m *MultiSink) RecordCommit(rec coremetrics.CommitRecord) error {
	var first error
	for _, s := range m.Sinks {
		if cr, ok := s.(coremetrics.CommitRecorder); ok {
			if err := cr.RecordCommit(rec); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// RecordStopEvent forwards stop transition records.
func (m *MultiSink) RecordStopEvent(rec coremetrics.StopEventRecord) error {
	var first error
	for _, s := range m.Sinks {
		if sr, ok := s.(coremetrics.StopEventRecorder); ok {
			if err := sr.RecordStopEvent(rec); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// RecordFleetSize forwards fleet size records when supported by the sink.
func (m *MultiSink) RecordFleetSize(size int) error {
	var first error
	for _, s := range m.Sinks {
		if fr, ok := s.(coremetrics.FleetSizeRecorder); ok {
			if err := fr.RecordFleetSize(size); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
