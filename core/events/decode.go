package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetcore/dispatchd/core/model"
)

// Envelope is the wire format of feed events: a type tag plus payload.
type Envelope struct {
	Type    Kind            `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

type stopCancelledPayload struct {
	StopID string `json:"stop_id"`
}

type shiftEndedPayload struct {
	VehicleID string `json:"vehicle_id"`
}

type positionPingPayload struct {
	VehicleID string      `json:"vehicle_id"`
	Position  model.Coord `json:"position"`
}

type delayDetectedPayload struct {
	VehicleID        string    `json:"vehicle_id"`
	StopID           string    `json:"stop_id"`
	ProjectedArrival time.Time `json:"projected_arrival"`
}

type resolveRequestedPayload struct {
	Requester string `json:"requester"`
}

type stopTransitionedPayload struct {
	StopID string `json:"stop_id"`
	Status string `json:"status"`
}

// Decode parses a feed envelope into its Event variant. Unknown types
// are an error so the caller can drop and log them; they never enter
// the trigger manager.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.At.IsZero() {
		env.At = time.Now().UTC()
	}
	switch env.Type {
	case KindStopCreated:
		var s model.Stop
		if err := json.Unmarshal(env.Payload, &s); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return StopCreated{Stop: s, At: env.At}, nil
	case KindStopCancelled:
		var p stopCancelledPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return StopCancelled{StopID: p.StopID, At: env.At}, nil
	case KindShiftStarted:
		var v model.Vehicle
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return ShiftStarted{Vehicle: v, At: env.At}, nil
	case KindShiftEnded:
		var p shiftEndedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return ShiftEnded{VehicleID: p.VehicleID, At: env.At}, nil
	case KindPositionPing:
		var p positionPingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return PositionPing{VehicleID: p.VehicleID, Position: p.Position, At: env.At}, nil
	case KindDelayDetected:
		var p delayDetectedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return DelayDetected{VehicleID: p.VehicleID, StopID: p.StopID, ProjectedArrival: p.ProjectedArrival, At: env.At}, nil
	case KindStopTransitioned:
		var p stopTransitionedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		status, err := model.ParseStopStatus(p.Status)
		if err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		// From is unknown at the boundary; the state machine validates
		// the transition against its own record.
		return StopTransitioned{StopID: p.StopID, To: status, At: env.At}, nil
	case KindResolveRequested:
		var p resolveRequestedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return ResolveRequested{Requester: p.Requester, At: env.At}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
