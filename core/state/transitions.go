package state

import "github.com/fleetcore/dispatchd/core/model"

// allowed is the stop lifecycle graph. Cancellation is only reachable
// while the stop has not left the yard; once en route the outcome is
// completed or failed.
var allowed = map[model.StopStatus][]model.StopStatus{
	model.StopPending:  {model.StopAssigned, model.StopCancelled},
	model.StopAssigned: {model.StopEnRoute, model.StopCancelled, model.StopPending},
	model.StopEnRoute:  {model.StopArrived, model.StopFailed},
	model.StopArrived:  {model.StopCompleted, model.StopFailed},
}

// canTransition reports whether from -> to is a legal lifecycle step.
// Repeating the current status is legal and treated as a no-op.
func canTransition(from, to model.StopStatus) bool {
	if from == to {
		return true
	}
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}
