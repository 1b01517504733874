package model

import (
	"fmt"
	"time"
)

// VehicleStatus tracks a driver+truck pairing through its shift.
type VehicleStatus int

const (
	VehicleAvailable VehicleStatus = iota
	VehicleOnRoute
	VehicleOffShift
)

// String returns a human-readable representation of the status.
func (s VehicleStatus) String() string {
	switch s {
	case VehicleAvailable:
		return "available"
	case VehicleOnRoute:
		return "on_route"
	case VehicleOffShift:
		return "off_shift"
	default:
		return "unknown"
	}
}

// Vehicle represents a driver and truck pairing for one shift.
type Vehicle struct {
	ID       string        `json:"id"`
	Capacity Quantity      `json:"capacity"`
	Shift    TimeWindow    `json:"shift"`
	Depot    Coord         `json:"depot"`
	Region   string        `json:"region,omitempty"`
	Status   VehicleStatus `json:"status"`

	// Live position from the location feed. PositionAt is the ping
	// timestamp, not the time the engine observed it.
	Position   Coord     `json:"position"`
	PositionAt time.Time `json:"position_at"`
}

// Validate checks that the vehicle configuration is sound.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.Capacity.Total() <= 0 {
		return fmt.Errorf("vehicle %s: capacity must be positive", v.ID)
	}
	if v.Shift.Latest.Before(v.Shift.Earliest) {
		return fmt.Errorf("vehicle %s: shift ends before it starts", v.ID)
	}
	return nil
}

// OnDuty reports whether the vehicle can take work at time t.
func (v Vehicle) OnDuty(t time.Time) bool {
	return v.Status != VehicleOffShift && v.Shift.Contains(t)
}

// StartPosition returns the position routes should depart from: the
// last known live position, or the depot before the first ping.
func (v Vehicle) StartPosition() Coord {
	if v.Position.IsZero() {
		return v.Depot
	}
	return v.Position
}
