package trips

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *mockRepo) StartTrip(ctx context.Context, rideID uuid.UUID) (*models.Trip, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *mockRepo) EndTrip(ctx context.Context, tripID uuid.UUID, distanceM, durationS int, breakdown models.FareBreakdown) (*models.Trip, error) {
	args := m.Called(ctx, tripID, distanceM, durationS, breakdown)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

type mockRides struct{ mock.Mock }

func (m *mockRides) GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func testPublisher() *events.Publisher { return events.New(nil) }

func TestStartTrip_HappyPath(t *testing.T) {
	repo := new(mockRepo)
	rides := new(mockRides)
	svc := NewService(repo, rides, testPublisher())

	rideID := uuid.New()
	trip := &models.Trip{ID: uuid.New(), RideID: rideID, Status: models.TripInProgress}
	repo.On("StartTrip", mock.Anything, rideID).Return(trip, nil)

	got, err := svc.StartTrip(context.Background(), rideID)
	require.NoError(t, err)
	assert.Equal(t, models.TripInProgress, got.Status)
}

func TestStartTrip_InvalidRideStatusMapsToConflict(t *testing.T) {
	repo := new(mockRepo)
	rides := new(mockRides)
	svc := NewService(repo, rides, testPublisher())

	rideID := uuid.New()
	repo.On("StartTrip", mock.Anything, rideID).Return(nil, ErrRideNotInExpectedStatus)

	_, err := svc.StartTrip(context.Background(), rideID)
	require.Error(t, err)
	appErr, ok := dispatcherr.As(err)
	require.True(t, ok)
	assert.Equal(t, dispatcherr.CodeInvalidStateTransition, appErr.Code)
}

func TestEndTrip_ComputesFareFromMeasuredDistanceAndDuration(t *testing.T) {
	repo := new(mockRepo)
	rides := new(mockRides)
	svc := NewService(repo, rides, testPublisher())

	tripID, rideID := uuid.New(), uuid.New()
	existing := &models.Trip{ID: tripID, RideID: rideID, SurgeMultiplier: decimal.NewFromInt(1)}
	repo.On("GetByID", mock.Anything, tripID).Return(existing, nil)
	rides.On("GetByID", mock.Anything, rideID).Return(&models.Ride{VehicleClass: models.VehicleMini}, nil)

	completed := &models.Trip{ID: tripID, RideID: rideID, Status: models.TripCompleted,
		TotalFare: decimal.NewFromFloat(120.00)}
	// mini, 5 km / 20 min, surge 1.0: 40 + 5*10 + 20*1.5 = 120.00
	repo.On("EndTrip", mock.Anything, tripID, 5000, 1200, mock.MatchedBy(func(b models.FareBreakdown) bool {
		return b.TotalFare.StringFixed(2) == "120.00"
	})).Return(completed, nil)

	got, err := svc.EndTrip(context.Background(), tripID, 5000, 1200)
	require.NoError(t, err)
	assert.Equal(t, models.TripCompleted, got.Status)
	assert.Equal(t, "120", got.TotalFare.String())
}

func TestEndTrip_DefaultsToMiniWhenRideLookupFails(t *testing.T) {
	repo := new(mockRepo)
	rides := new(mockRides)
	svc := NewService(repo, rides, testPublisher())

	tripID, rideID := uuid.New(), uuid.New()
	existing := &models.Trip{ID: tripID, RideID: rideID, SurgeMultiplier: decimal.NewFromInt(1)}
	repo.On("GetByID", mock.Anything, tripID).Return(existing, nil)
	rides.On("GetByID", mock.Anything, rideID).Return(nil, assert.AnError)

	completed := &models.Trip{ID: tripID, RideID: rideID, Status: models.TripCompleted}
	repo.On("EndTrip", mock.Anything, tripID, 1000, 300, mock.AnythingOfType("models.FareBreakdown")).
		Return(completed, nil)

	_, err := svc.EndTrip(context.Background(), tripID, 1000, 300)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestEndTrip_InvalidTripStatusMapsToConflict(t *testing.T) {
	repo := new(mockRepo)
	rides := new(mockRides)
	svc := NewService(repo, rides, testPublisher())

	tripID, rideID := uuid.New(), uuid.New()
	existing := &models.Trip{ID: tripID, RideID: rideID, SurgeMultiplier: decimal.NewFromInt(1)}
	repo.On("GetByID", mock.Anything, tripID).Return(existing, nil)
	rides.On("GetByID", mock.Anything, rideID).Return(&models.Ride{VehicleClass: models.VehicleMini}, nil)
	repo.On("EndTrip", mock.Anything, tripID, mock.Anything, mock.Anything, mock.AnythingOfType("models.FareBreakdown")).
		Return(nil, ErrTripNotInExpectedStatus)

	_, err := svc.EndTrip(context.Background(), tripID, 100, 60)
	require.Error(t, err)
	appErr, ok := dispatcherr.As(err)
	require.True(t, ok)
	assert.Equal(t, dispatcherr.CodeInvalidStateTransition, appErr.Code)
}
