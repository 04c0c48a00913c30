// Package fsm holds the ride, offer and trip state machines as pure
// transition tables. No I/O happens here; validation is a function of
// (current, target) only.
package fsm

import (
	"fmt"

	"github.com/ridecore/dispatch/internal/models"
)

var rideTransitions = map[models.RideStatus][]models.RideStatus{
	models.RidePending:       {models.RideMatching, models.RideCancelled},
	models.RideMatching:      {models.RideOffered, models.RideCancelled},
	models.RideOffered:       {models.RideAccepted, models.RideMatching, models.RideNoDrivers, models.RideCancelled},
	models.RideAccepted:      {models.RideDriverEnRoute, models.RideCancelled},
	models.RideDriverEnRoute: {models.RideArrived, models.RideCancelled},
	models.RideArrived:       {models.RideInTrip, models.RideCancelled},
	models.RideInTrip:        {models.RideCompleted},
	models.RideCompleted:     {},
	models.RideCancelled:     {},
	models.RideNoDrivers:     {},
}

// CanTransitionRide reports whether target is a legal next state from current.
func CanTransitionRide(current, target models.RideStatus) bool {
	for _, allowed := range rideTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionRide returns target if the move is legal, else InvalidStateTransition.
func TransitionRide(current, target models.RideStatus) (models.RideStatus, error) {
	if !CanTransitionRide(current, target) {
		return current, fmt.Errorf("%w: ride %s -> %s", ErrInvalidTransition, current, target)
	}
	return target, nil
}

// RideIsTerminal reports whether a ride status has no outgoing edges.
func RideIsTerminal(status models.RideStatus) bool {
	return len(rideTransitions[status]) == 0
}
