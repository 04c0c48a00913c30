// Package trips implements the driving leg of an accepted ride: starting
// it, and ending it with a measured distance/duration that prices the fare.
package trips

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/fare"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/shopspring/decimal"
)

// repoPort is the transactional database access StartTrip/EndTrip need.
type repoPort interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	StartTrip(ctx context.Context, rideID uuid.UUID) (*models.Trip, error)
	EndTrip(ctx context.Context, tripID uuid.UUID, distanceM, durationS int, breakdown models.FareBreakdown) (*models.Trip, error)
}

// rideLookup is the one piece of ride state EndTrip needs: its vehicle
// class, to select the right fare table.
type rideLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
}

// Service implements start_trip and end_trip.
type Service struct {
	repo      repoPort
	rides     rideLookup
	publisher *events.Publisher
}

func NewService(repo repoPort, rides rideLookup, publisher *events.Publisher) *Service {
	return &Service{repo: repo, rides: rides, publisher: publisher}
}

// GetTrip returns a trip by id, or TripNotFound.
func (s *Service) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	trip, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, dispatcherr.TripNotFound(err)
	}
	return trip, nil
}

// StartTrip transitions ride to in_trip and creates its trip, publishing
// ride:started.
func (s *Service) StartTrip(ctx context.Context, rideID uuid.UUID) (*models.Trip, error) {
	trip, err := s.repo.StartTrip(ctx, rideID)
	if err != nil {
		if errors.Is(err, ErrRideNotInExpectedStatus) {
			return nil, dispatcherr.InvalidStateTransition("ride is not ready to start a trip")
		}
		return nil, dispatcherr.Internal("start trip", err)
	}
	s.publisher.PublishRide(rideID.String(), events.RideStarted, map[string]interface{}{
		"trip_id": trip.ID.String(),
	})
	return trip, nil
}

// EndTrip computes the fare from the measured distance/duration, stores the
// breakdown, completes the trip and ride, releases the driver, and
// publishes ride:completed.
func (s *Service) EndTrip(ctx context.Context, tripID uuid.UUID, distanceM, durationS int) (*models.Trip, error) {
	existing, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, dispatcherr.TripNotFound(err)
	}

	vehicle := models.VehicleMini
	if ride, err := s.rides.GetByID(ctx, existing.RideID); err == nil && ride.VehicleClass != "" {
		vehicle = ride.VehicleClass
	}

	distanceKm := decimal.NewFromFloat(float64(distanceM) / 1000)
	durationMin := decimal.NewFromFloat(float64(durationS) / 60)
	breakdown := fare.Compute(vehicle, distanceKm, durationMin, existing.SurgeMultiplier)

	trip, err := s.repo.EndTrip(ctx, tripID, distanceM, durationS, breakdown)
	if err != nil {
		if errors.Is(err, ErrTripNotInExpectedStatus) {
			return nil, dispatcherr.InvalidStateTransition("trip is not in a state that can be ended")
		}
		return nil, dispatcherr.Internal("end trip", err)
	}

	s.publisher.PublishRide(trip.RideID.String(), events.RideCompleted, map[string]interface{}{
		"trip_id":    trip.ID.String(),
		"total_fare": trip.TotalFare.StringFixed(2),
	})
	return trip, nil
}
