package fsm

import (
	"fmt"

	"github.com/ridecore/dispatch/internal/models"
)

var tripTransitions = map[models.TripStatus][]models.TripStatus{
	models.TripStarted:    {models.TripInProgress, models.TripCancelled},
	models.TripInProgress: {models.TripCompleted, models.TripPaused, models.TripCancelled},
	models.TripPaused:     {models.TripInProgress, models.TripCancelled},
	models.TripCompleted:  {},
	models.TripCancelled:  {},
}

// CanTransitionTrip reports whether target is a legal next state from current.
func CanTransitionTrip(current, target models.TripStatus) bool {
	for _, allowed := range tripTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTrip returns target if the move is legal, else InvalidStateTransition.
func TransitionTrip(current, target models.TripStatus) (models.TripStatus, error) {
	if !CanTransitionTrip(current, target) {
		return current, fmt.Errorf("%w: trip %s -> %s", ErrInvalidTransition, current, target)
	}
	return target, nil
}
