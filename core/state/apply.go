package state

import (
	"fmt"

	"github.com/fleetcore/dispatchd/core/events"
	"github.com/fleetcore/dispatchd/core/model"
)

// Apply routes a decoded feed event to the matching mutation. Events
// that carry no state change of their own, delay reports and manual
// re-solve requests, are recorded and fanned out unchanged so the
// trigger manager sees them.
func (m *Machine) Apply(ev events.Event) error {
	switch e := ev.(type) {
	case events.StopCreated:
		return m.AddStop(e.Stop)
	case events.StopCancelled:
		return m.AdvanceStop(e.StopID, model.StopCancelled)
	case events.ShiftStarted:
		return m.UpsertVehicle(e.Vehicle)
	case events.ShiftEnded:
		return m.EndShift(e.VehicleID)
	case events.PositionPing:
		return m.RecordVehiclePosition(e.VehicleID, e.Position, e.At)
	case events.StopTransitioned:
		return m.AdvanceStop(e.StopID, e.To)
	case events.DelayDetected, events.ResolveRequested:
		m.mu.Lock()
		m.record(ev)
		m.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("state: unhandled event kind %q", ev.Kind())
	}
}
