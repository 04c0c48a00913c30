package fsm

import (
	"fmt"

	"github.com/ridecore/dispatch/internal/models"
)

var offerTransitions = map[models.OfferStatus][]models.OfferStatus{
	models.OfferPending:  {models.OfferAccepted, models.OfferDeclined, models.OfferExpired},
	models.OfferAccepted: {},
	models.OfferDeclined: {},
	models.OfferExpired:  {},
}

// CanTransitionOffer reports whether target is a legal next state from current.
func CanTransitionOffer(current, target models.OfferStatus) bool {
	for _, allowed := range offerTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionOffer returns target if the move is legal, else InvalidStateTransition.
func TransitionOffer(current, target models.OfferStatus) (models.OfferStatus, error) {
	if !CanTransitionOffer(current, target) {
		return current, fmt.Errorf("%w: offer %s -> %s", ErrInvalidTransition, current, target)
	}
	return target, nil
}
