package metrics

import "time"

// SolveRecord captures one solver invocation.
type SolveRecord struct {
	PlanID      string
	Duration    time.Duration
	Iterations  int
	Assigned    int
	Unassigned  int
	Cost        int64
	Approximate bool
	Scoped      bool
	Interrupted bool
	Time        time.Time
}

// MetricsSink records solver runs for observability purposes.
type MetricsSink interface {
	RecordSolve(rec SolveRecord) error
}

// CommitRecord captures one committed plan swap.
type CommitRecord struct {
	PlanID     string
	Version    int64
	Routes     int
	Stops      int
	Unassigned int
	Time       time.Time
}

// CommitRecorder is implemented by sinks able to record plan commits.
type CommitRecorder interface {
	RecordCommit(rec CommitRecord) error
}

// StopEventRecord captures a stop lifecycle transition.
type StopEventRecord struct {
	StopID           string
	VehicleID        string
	Status           string
	TardinessSeconds int
	Time             time.Time
}

// StopEventRecorder is implemented by sinks able to record stop events.
type StopEventRecorder interface {
	RecordStopEvent(rec StopEventRecord) error
}

// FleetSizeRecorder records the number of vehicles currently on duty.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveRecord) error         { return nil }
func (NopSink) RecordCommit(CommitRecord) error       { return nil }
func (NopSink) RecordStopEvent(StopEventRecord) error { return nil }
func (NopSink) RecordFleetSize(int) error             { return nil }
