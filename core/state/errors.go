package state

import (
	"errors"
	"fmt"

	"github.com/fleetcore/dispatchd/core/model"
)

// ErrUnknownStop is returned for operations on a stop the machine has
// never seen.
var ErrUnknownStop = errors.New("state: unknown stop")

// ErrUnknownVehicle is returned for operations on a vehicle the machine
// has never seen.
var ErrUnknownVehicle = errors.New("state: unknown vehicle")

// StaleModelError rejects a commit whose plan was built against a
// version that is no longer current. The caller re-builds the model
// from a fresh snapshot and retries.
type StaleModelError struct {
	PlanBase int64
	Current  int64
}

func (e *StaleModelError) Error() string {
	return fmt.Sprintf("state: plan built at version %d, current is %d", e.PlanBase, e.Current)
}

// InvalidTransitionError rejects a stop status change not allowed by
// the lifecycle graph. State is left unchanged.
type InvalidTransitionError struct {
	StopID string
	From   model.StopStatus
	To     model.StopStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("state: stop %s cannot transition %s -> %s", e.StopID, e.From, e.To)
}
