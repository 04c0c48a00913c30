package fsm

import (
	"errors"
	"testing"

	"github.com/ridecore/dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionRide_MatchesTransition(t *testing.T) {
	pairs := []struct {
		from, to models.RideStatus
		want     bool
	}{
		{models.RidePending, models.RideMatching, true},
		{models.RidePending, models.RideAccepted, false},
		{models.RideMatching, models.RideOffered, true},
		{models.RideOffered, models.RideAccepted, true},
		{models.RideOffered, models.RideMatching, true},
		{models.RideOffered, models.RideNoDrivers, true},
		{models.RideInTrip, models.RideCompleted, true},
		{models.RideInTrip, models.RideCancelled, false},
		{models.RideCompleted, models.RideMatching, false},
	}

	for _, p := range pairs {
		got := CanTransitionRide(p.from, p.to)
		assert.Equalf(t, p.want, got, "%s -> %s", p.from, p.to)

		_, err := TransitionRide(p.from, p.to)
		if p.want {
			assert.NoError(t, err)
		} else {
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
		}
	}
}

func TestRideIsTerminal(t *testing.T) {
	for _, s := range []models.RideStatus{models.RideCompleted, models.RideCancelled, models.RideNoDrivers} {
		assert.True(t, RideIsTerminal(s), s)
		assert.Empty(t, rideTransitions[s])
	}
	assert.False(t, RideIsTerminal(models.RideMatching))
}
