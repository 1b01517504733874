package broadcast

import (
	"time"

	"github.com/fleetcore/dispatchd/core/model"
)

// Role selects the delta a subscriber receives. Drivers see their own
// route, customers their own stop, dispatchers the fleet.
type Role string

const (
	RoleDriver     Role = "driver"
	RoleDispatcher Role = "dispatcher"
	RoleCustomer   Role = "customer"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

const (
	TypePlanCommitted   MessageType = "plan_committed"
	TypeStopStatus      MessageType = "stop_status"
	TypeVehiclePosition MessageType = "vehicle_position"
	TypeSnapshot        MessageType = "snapshot"
)

// Message is one unit of delivery to a subscriber. Version is the state
// version the payload was computed from, so clients can detect gaps and
// request a snapshot.
type Message struct {
	Type    MessageType `json:"type"`
	Version int64       `json:"version"`
	At      time.Time   `json:"at"`
	Payload any         `json:"payload"`
}

// StopETA is one stop of a route delta, carrying the projected arrival.
type StopETA struct {
	StopID  string    `json:"stop_id"`
	Status  string    `json:"status"`
	ETA     time.Time `json:"eta"`
	LateSec int       `json:"late_seconds,omitempty"`
}

// RouteDelta is the plan_committed payload for a driver: the new route
// for their vehicle only.
type RouteDelta struct {
	VehicleID string    `json:"vehicle_id"`
	PlanID    string    `json:"plan_id"`
	Stops     []StopETA `json:"stops"`
}

// FleetDelta is the plan_committed payload for dispatchers.
type FleetDelta struct {
	PlanID     string                 `json:"plan_id"`
	Routes     []RouteDelta           `json:"routes"`
	Unassigned []model.UnassignedStop `json:"unassigned"`
}

// StopStatusPayload reports a single stop lifecycle change.
type StopStatusPayload struct {
	StopID          string    `json:"stop_id"`
	VehicleID       string    `json:"vehicle_id,omitempty"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	RecordedArrival time.Time `json:"recorded_arrival,omitempty"`
}

// PositionPayload reports a live vehicle position.
type PositionPayload struct {
	VehicleID string      `json:"vehicle_id"`
	Position  model.Coord `json:"position"`
	At        time.Time   `json:"at"`
}

func routeDelta(planID string, r model.Route) RouteDelta {
	d := RouteDelta{VehicleID: r.VehicleID, PlanID: planID}
	for _, rs := range r.Stops {
		d.Stops = append(d.Stops, StopETA{
			StopID:  rs.Stop.ID,
			Status:  rs.Stop.Status.String(),
			ETA:     rs.ProjectedArrival,
			LateSec: rs.TardinessSeconds,
		})
	}
	return d
}
