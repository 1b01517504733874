package model

import "time"

// RouteStatus tracks a route through its planning lifecycle.
type RouteStatus int

const (
	RouteDraft RouteStatus = iota
	RouteActive
	RouteCompleted
	RouteSuperseded
)

// String returns a human-readable representation of the status.
func (s RouteStatus) String() string {
	switch s {
	case RouteDraft:
		return "draft"
	case RouteActive:
		return "active"
	case RouteCompleted:
		return "completed"
	case RouteSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// RouteStop is one stop in a route together with its projected schedule.
type RouteStop struct {
	Stop             Stop      `json:"stop"`
	TravelSeconds    int       `json:"travel_seconds"` // leg from the previous position
	DistanceMeters   int       `json:"distance_meters"`
	ProjectedArrival time.Time `json:"projected_arrival"`
	TardinessSeconds int       `json:"tardiness_seconds"`
}

// Route is an ordered stop sequence assigned to one vehicle for a shift.
// Routes are superseded by the next committed plan, never edited in place.
type Route struct {
	VehicleID           string      `json:"vehicle_id"`
	Stops               []RouteStop `json:"stops"`
	TotalTravelSeconds  int         `json:"total_travel_seconds"`
	TotalDistanceMeters int         `json:"total_distance_meters"`
	ProjectedEnd        time.Time   `json:"projected_end"`
	Status              RouteStatus `json:"status"`
	Version             int64       `json:"version"`
}

// LoadProfile returns the onboard load after each stop. A delivery
// vehicle departs carrying every delivery demand; pickups add to the
// onboard load as they are serviced.
func (r Route) LoadProfile() []Quantity {
	onboard := Quantity{}
	for _, rs := range r.Stops {
		if rs.Stop.Kind == KindDelivery {
			onboard = onboard.Add(rs.Stop.Demand)
		}
	}
	profile := make([]Quantity, 0, len(r.Stops)+1)
	profile = append(profile, onboard)
	for _, rs := range r.Stops {
		switch rs.Stop.Kind {
		case KindDelivery:
			onboard = onboard.Sub(rs.Stop.Demand)
		case KindPickup:
			onboard = onboard.Add(rs.Stop.Demand)
		}
		profile = append(profile, onboard)
	}
	return profile
}

// FitsCapacity reports whether the load at every prefix of the stop
// sequence stays within the given capacity.
func (r Route) FitsCapacity(capacity Quantity) bool {
	for _, load := range r.LoadProfile() {
		if !load.Fits(capacity) {
			return false
		}
	}
	return true
}

// StopIDs returns the stop identifiers in route order.
func (r Route) StopIDs() []string {
	ids := make([]string, 0, len(r.Stops))
	for _, rs := range r.Stops {
		ids = append(ids, rs.Stop.ID)
	}
	return ids
}

// UnassignedReason explains why the solver left a stop out of the plan.
type UnassignedReason string

const (
	ReasonNoCapacity      UnassignedReason = "no_capacity"
	ReasonWindowExpired   UnassignedReason = "window_expired"
	ReasonWindowConflict  UnassignedReason = "window_conflict"
	ReasonNoVehicleOnDuty UnassignedReason = "no_vehicle_on_duty"
)

// UnassignedStop is a stop the solver could not feasibly place. These
// are surfaced to the dispatcher, never dropped.
type UnassignedStop struct {
	Stop   Stop             `json:"stop"`
	Reason UnassignedReason `json:"reason"`
}

// SolveInfo carries metadata about the solver run that produced a plan.
type SolveInfo struct {
	Duration    time.Duration `json:"duration"`
	Iterations  int           `json:"iterations"`
	Improved    int           `json:"improved"` // accepted improving moves
	Interrupted bool          `json:"interrupted"`
	Approximate bool          `json:"approximate"` // built on great-circle estimates
	Scope       []string      `json:"scope,omitempty"`
}

// Plan is the full set of routes produced by one solver run. It is
// committed to the state machine as an atomic unit.
type Plan struct {
	ID          string           `json:"id"`
	BaseVersion int64            `json:"base_version"`
	CreatedAt   time.Time        `json:"created_at"`
	Routes      []Route          `json:"routes"`
	Unassigned  []UnassignedStop `json:"unassigned"`
	Cost        int64            `json:"cost"`
	Solve       SolveInfo        `json:"solve"`
}

// RouteFor returns the route assigned to the vehicle, or nil.
func (p *Plan) RouteFor(vehicleID string) *Route {
	for i := range p.Routes {
		if p.Routes[i].VehicleID == vehicleID {
			return &p.Routes[i]
		}
	}
	return nil
}

// StopCount returns the number of assigned stops across all routes.
func (p *Plan) StopCount() int {
	n := 0
	for _, r := range p.Routes {
		n += len(r.Stops)
	}
	return n
}
