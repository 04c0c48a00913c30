package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/locationindex"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) OfferedDriverIDs(ctx context.Context, rideID uuid.UUID) (map[uuid.UUID]bool, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]bool), args.Error(1)
}

func (m *mockRepo) LockAndOffer(ctx context.Context, rideID, driverID uuid.UUID, offerTTL time.Duration) (*models.RideOffer, error) {
	args := m.Called(ctx, rideID, driverID, offerTTL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RideOffer), args.Error(1)
}

func (m *mockRepo) MarkNoDrivers(ctx context.Context, rideID uuid.UUID) error {
	args := m.Called(ctx, rideID)
	return args.Error(0)
}

func (m *mockRepo) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	args := m.Called(ctx, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *mockRepo) GetOffer(ctx context.Context, offerID uuid.UUID) (*models.RideOffer, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RideOffer), args.Error(1)
}

func (m *mockRepo) ExpireOffer(ctx context.Context, offerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, offerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) ReleaseDriverIfBusy(ctx context.Context, driverID uuid.UUID) error {
	args := m.Called(ctx, driverID)
	return args.Error(0)
}

func (m *mockRepo) ReopenRideForMatching(ctx context.Context, rideID uuid.UUID) (bool, error) {
	args := m.Called(ctx, rideID)
	return args.Bool(0), args.Error(1)
}

type mockLocations struct{ mock.Mock }

func (m *mockLocations) FindNearby(ctx context.Context, lat, lng float64, vehicle models.VehicleClass, radiusKm float64, count int) ([]locationindex.Candidate, error) {
	args := m.Called(ctx, lat, lng, vehicle, radiusKm, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]locationindex.Candidate), args.Error(1)
}

func (m *mockLocations) IsAlive(ctx context.Context, driverID uuid.UUID) (bool, error) {
	args := m.Called(ctx, driverID)
	return args.Bool(0), args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) ZAddScore(ctx context.Context, key string, score float64, member interface{}) error {
	args := m.Called(ctx, key, score, member)
	return args.Error(0)
}

func (m *mockQueue) ZPopBelow(ctx context.Context, key string, max float64) ([]string, error) {
	args := m.Called(ctx, key, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyNoDrivers(riderPhone string) {
	m.Called(riderPhone)
}

type mockRiders struct{ mock.Mock }

func (m *mockRiders) GetRiderPhone(ctx context.Context, riderID uuid.UUID) (string, error) {
	args := m.Called(ctx, riderID)
	return args.String(0), args.Error(1)
}

func testRide() *models.Ride {
	return &models.Ride{
		ID:           uuid.New(),
		PickupLat:    12.9716,
		PickupLng:    77.5946,
		VehicleClass: models.VehicleMini,
		Status:       models.RideMatching,
		OffersMade:   0,
		MaxOffers:    MaxOffersPerRide,
	}
}

func TestFindAndOffer_LocksFirstAliveUnexcludedCandidate(t *testing.T) {
	ride := testRide()
	driverID := uuid.New()

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{{DriverID: driverID, DistanceKm: 0.5}}, nil)
	locations.On("IsAlive", ctx, driverID).Return(true, nil)

	offer := &models.RideOffer{ID: uuid.New(), RideID: ride.ID, DriverID: driverID, Status: models.OfferPending, ExpiresAt: time.Now().Add(OfferTTL)}
	repo.On("LockAndOffer", ctx, ride.ID, driverID, OfferTTL).Return(offer, nil)
	queue.On("ZAddScore", ctx, expiryQueueKey, float64(offer.ExpiresAt.Unix()), offer.ID.String()).Return(nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, offer.ID, got.ID)
	repo.AssertExpectations(t)
	locations.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestFindAndOffer_SkipsExcludedAndDeadCandidates(t *testing.T) {
	ride := testRide()
	excludedDriver := uuid.New()
	deadDriver := uuid.New()
	goodDriver := uuid.New()

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{excludedDriver: true}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{
			{DriverID: excludedDriver},
			{DriverID: deadDriver},
			{DriverID: goodDriver},
		}, nil)
	locations.On("IsAlive", ctx, deadDriver).Return(false, nil)
	locations.On("IsAlive", ctx, goodDriver).Return(true, nil)

	offer := &models.RideOffer{ID: uuid.New(), RideID: ride.ID, DriverID: goodDriver, Status: models.OfferPending, ExpiresAt: time.Now().Add(OfferTTL)}
	repo.On("LockAndOffer", ctx, ride.ID, goodDriver, OfferTTL).Return(offer, nil)
	queue.On("ZAddScore", ctx, expiryQueueKey, mock.Anything, offer.ID.String()).Return(nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, goodDriver, got.DriverID)
	locations.AssertNotCalled(t, "IsAlive", ctx, excludedDriver)
}

func TestFindAndOffer_ExpandsRadiusWhenInitialSearchEmpty(t *testing.T) {
	ride := testRide()
	driverID := uuid.New()

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, expandedRadiusKm, candidateCount).
		Return([]locationindex.Candidate{{DriverID: driverID}}, nil)
	locations.On("IsAlive", ctx, driverID).Return(true, nil)

	offer := &models.RideOffer{ID: uuid.New(), RideID: ride.ID, DriverID: driverID, Status: models.OfferPending, ExpiresAt: time.Now().Add(OfferTTL)}
	repo.On("LockAndOffer", ctx, ride.ID, driverID, OfferTTL).Return(offer, nil)
	queue.On("ZAddScore", ctx, expiryQueueKey, mock.Anything, offer.ID.String()).Return(nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	require.NotNil(t, got)
	locations.AssertExpectations(t)
}

func TestFindAndOffer_ContinuesPastUnavailableDriver(t *testing.T) {
	ride := testRide()
	takenDriver := uuid.New()
	freeDriver := uuid.New()

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{{DriverID: takenDriver}, {DriverID: freeDriver}}, nil)
	locations.On("IsAlive", ctx, takenDriver).Return(true, nil)
	locations.On("IsAlive", ctx, freeDriver).Return(true, nil)

	repo.On("LockAndOffer", ctx, ride.ID, takenDriver, OfferTTL).Return(nil, ErrDriverUnavailable)
	offer := &models.RideOffer{ID: uuid.New(), RideID: ride.ID, DriverID: freeDriver, Status: models.OfferPending, ExpiresAt: time.Now().Add(OfferTTL)}
	repo.On("LockAndOffer", ctx, ride.ID, freeDriver, OfferTTL).Return(offer, nil)
	queue.On("ZAddScore", ctx, expiryQueueKey, mock.Anything, offer.ID.String()).Return(nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, freeDriver, got.DriverID)
}

func TestFindAndOffer_ExhaustedOffersTransitionsToNoDrivers(t *testing.T) {
	ride := testRide()
	ride.OffersMade = MaxOffersPerRide

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, expandedRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	repo.On("MarkNoDrivers", ctx, ride.ID).Return(nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	assert.Nil(t, got)
	repo.AssertExpectations(t)
}

func TestFindAndOffer_ExhaustedOffersSendsSMSWhenNotifierConfigured(t *testing.T) {
	ride := testRide()
	ride.RiderID = uuid.New()
	ride.OffersMade = MaxOffersPerRide

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, expandedRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	repo.On("MarkNoDrivers", ctx, ride.ID).Return(nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	notifier := new(mockNotifier)
	riders := new(mockRiders)
	engine.EnableSMSNotifications(notifier, riders)
	riders.On("GetRiderPhone", ctx, ride.RiderID).Return("+15557654321", nil)
	notifier.On("NotifyNoDrivers", "+15557654321").Return()

	_, err := engine.FindAndOffer(ctx, ride)
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestFindAndOffer_NotExhaustedReturnsWithoutOfferOrStatusChange(t *testing.T) {
	ride := testRide()
	ride.OffersMade = 1

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, expandedRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	assert.Nil(t, got)
	repo.AssertNotCalled(t, "MarkNoDrivers", mock.Anything, mock.Anything)
}

func TestFindAndOffer_GeoSearchFailureLeavesRideInMatching(t *testing.T) {
	ride := testRide()
	ride.OffersMade = MaxOffersPerRide

	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return(nil, assert.AnError)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	got, err := engine.FindAndOffer(ctx, ride)

	require.NoError(t, err)
	assert.Nil(t, got)
	repo.AssertNotCalled(t, "MarkNoDrivers", mock.Anything, mock.Anything)
}

func TestHandleOfferExpired_ReleasesDriverAndReopensRide(t *testing.T) {
	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	ride := testRide()
	offer := &models.RideOffer{ID: uuid.New(), RideID: ride.ID, DriverID: uuid.New(), Status: models.OfferPending}

	repo.On("GetOffer", ctx, offer.ID).Return(offer, nil)
	repo.On("ExpireOffer", ctx, offer.ID).Return(true, nil)
	repo.On("ReleaseDriverIfBusy", ctx, offer.DriverID).Return(nil)
	repo.On("ReopenRideForMatching", ctx, offer.RideID).Return(true, nil)
	repo.On("GetRide", ctx, offer.RideID).Return(ride, nil)
	repo.On("OfferedDriverIDs", ctx, ride.ID).Return(map[uuid.UUID]bool{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)
	locations.On("FindNearby", ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, expandedRadiusKm, candidateCount).
		Return([]locationindex.Candidate{}, nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	err := engine.handleOfferExpired(ctx, offer.ID)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestHandleOfferExpired_SkipsNonPendingOffer(t *testing.T) {
	repo := &mockRepo{}
	locations := &mockLocations{}
	queue := &mockQueue{}
	ctx := context.Background()

	offer := &models.RideOffer{ID: uuid.New(), Status: models.OfferAccepted}
	repo.On("GetOffer", ctx, offer.ID).Return(offer, nil)

	engine := NewEngine(repo, locations, queue, events.New(nil))
	err := engine.handleOfferExpired(ctx, offer.ID)

	require.NoError(t, err)
	repo.AssertNotCalled(t, "ExpireOffer", mock.Anything, mock.Anything)
}
