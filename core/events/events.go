package events

import (
	"time"

	"github.com/fleetcore/dispatchd/core/model"
)

// Kind identifies the variant of an Event.
type Kind string

const (
	KindStopCreated      Kind = "stop_created"
	KindStopCancelled    Kind = "stop_cancelled"
	KindShiftStarted     Kind = "shift_started"
	KindShiftEnded       Kind = "shift_ended"
	KindPositionPing     Kind = "position_ping"
	KindDelayDetected    Kind = "delay_detected"
	KindStopTransitioned Kind = "stop_transitioned"
	KindPlanCommitted    Kind = "plan_committed"
	KindResolveRequested Kind = "resolve_requested"
)

// Event is an immutable, timestamped record of an input change or a
// state-machine transition. The variant set is closed: payloads are
// decoded into one of these types at the system boundary.
type Event interface {
	Kind() Kind
	OccurredAt() time.Time
}

// StopCreated is published when an order enters the dispatch-ready state.
type StopCreated struct {
	Stop model.Stop
	At   time.Time
}

func (e StopCreated) Kind() Kind            { return KindStopCreated }
func (e StopCreated) OccurredAt() time.Time { return e.At }

// StopCancelled is published when an order is withdrawn.
type StopCancelled struct {
	StopID string
	At     time.Time
}

func (e StopCancelled) Kind() Kind            { return KindStopCancelled }
func (e StopCancelled) OccurredAt() time.Time { return e.At }

// ShiftStarted is published when a vehicle comes on duty.
type ShiftStarted struct {
	Vehicle model.Vehicle
	At      time.Time
}

func (e ShiftStarted) Kind() Kind            { return KindShiftStarted }
func (e ShiftStarted) OccurredAt() time.Time { return e.At }

// ShiftEnded is published when a vehicle goes off duty.
type ShiftEnded struct {
	VehicleID string
	At        time.Time
}

func (e ShiftEnded) Kind() Kind            { return KindShiftEnded }
func (e ShiftEnded) OccurredAt() time.Time { return e.At }

// PositionPing carries a live vehicle position from the location feed.
type PositionPing struct {
	VehicleID string
	Position  model.Coord
	At        time.Time
}

func (e PositionPing) Kind() Kind            { return KindPositionPing }
func (e PositionPing) OccurredAt() time.Time { return e.At }

// DelayDetected is published when a vehicle's projected arrival at its
// next stop drifts past the plan.
type DelayDetected struct {
	VehicleID        string
	StopID           string
	ProjectedArrival time.Time
	At               time.Time
}

func (e DelayDetected) Kind() Kind            { return KindDelayDetected }
func (e DelayDetected) OccurredAt() time.Time { return e.At }

// StopTransitioned records a stop lifecycle change applied by the state
// machine. RecordedArrival is set for arrivals and completions.
type StopTransitioned struct {
	StopID          string
	VehicleID       string
	From            model.StopStatus
	To              model.StopStatus
	RecordedArrival time.Time
	At              time.Time
}

func (e StopTransitioned) Kind() Kind            { return KindStopTransitioned }
func (e StopTransitioned) OccurredAt() time.Time { return e.At }

// PlanCommitted records a committed plan swap.
type PlanCommitted struct {
	PlanID     string
	Version    int64
	RouteCount int
	StopCount  int
	Unassigned int
	SolveTime  time.Duration
	At         time.Time
}

func (e PlanCommitted) Kind() Kind            { return KindPlanCommitted }
func (e PlanCommitted) OccurredAt() time.Time { return e.At }

// ResolveRequested is a manual dispatcher request for a full-fleet solve.
type ResolveRequested struct {
	Requester string
	At        time.Time
}

func (e ResolveRequested) Kind() Kind            { return KindResolveRequested }
func (e ResolveRequested) OccurredAt() time.Time { return e.At }
