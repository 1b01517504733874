package model

import (
	"fmt"
	"time"
)

// StopStatus tracks the lifecycle of a delivery or pickup obligation.
type StopStatus int

const (
	StopPending StopStatus = iota
	StopAssigned
	StopEnRoute
	StopArrived
	StopCompleted
	StopFailed
	StopCancelled
)

// String returns a human-readable representation of the status.
func (s StopStatus) String() string {
	switch s {
	case StopPending:
		return "pending"
	case StopAssigned:
		return "assigned"
	case StopEnRoute:
		return "en_route"
	case StopArrived:
		return "arrived"
	case StopCompleted:
		return "completed"
	case StopFailed:
		return "failed"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStopStatus maps the wire representation back to a StopStatus.
func ParseStopStatus(s string) (StopStatus, error) {
	switch s {
	case "pending":
		return StopPending, nil
	case "assigned":
		return StopAssigned, nil
	case "en_route":
		return StopEnRoute, nil
	case "arrived":
		return StopArrived, nil
	case "completed":
		return StopCompleted, nil
	case "failed":
		return StopFailed, nil
	case "cancelled":
		return StopCancelled, nil
	default:
		return 0, fmt.Errorf("unknown stop status %q", s)
	}
}

// Terminal reports whether the status ends the stop's lifecycle.
func (s StopStatus) Terminal() bool {
	return s == StopCompleted || s == StopFailed || s == StopCancelled
}

// StopKind distinguishes deliveries from pickups (empty cylinder returns).
type StopKind int

const (
	KindDelivery StopKind = iota
	KindPickup
)

// TimeWindow is the [Earliest, Latest] interval within which a stop
// must be serviced.
type TimeWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Contains reports whether t lies within the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Earliest) && !t.After(w.Latest)
}

// TardinessSeconds returns how many seconds t falls past the window's
// latest bound. Arrivals within or before the window yield zero.
func (w TimeWindow) TardinessSeconds(t time.Time) int {
	if !t.After(w.Latest) {
		return 0
	}
	return int(t.Sub(w.Latest) / time.Second)
}

// Stop is a single delivery or pickup obligation.
type Stop struct {
	ID             string     `json:"id"`
	Kind           StopKind   `json:"kind"`
	Location       Coord      `json:"location"`
	Region         string     `json:"region,omitempty"`
	Demand         Quantity   `json:"demand"`
	Window         TimeWindow `json:"window"`
	ServiceSeconds int        `json:"service_seconds"`
	Priority       int        `json:"priority"` // higher dispatches first
	Status         StopStatus `json:"status"`

	// ArrivedAt is stamped when the vehicle reports arrival. Window
	// feasibility and tardiness are judged against it, not against the
	// later completion time.
	ArrivedAt time.Time `json:"arrived_at,omitempty"`
}

// Validate checks that the stop definition is sound.
func (s Stop) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("stop id is required")
	}
	if s.Demand.Total() <= 0 {
		return fmt.Errorf("stop %s: demand must be positive", s.ID)
	}
	if s.Window.Latest.Before(s.Window.Earliest) {
		return fmt.Errorf("stop %s: window ends before it starts", s.ID)
	}
	if s.ServiceSeconds < 0 {
		return fmt.Errorf("stop %s: service duration must not be negative", s.ID)
	}
	return nil
}
