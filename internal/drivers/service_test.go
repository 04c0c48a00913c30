package drivers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Driver), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, limit int) ([]*models.Driver, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Driver), args.Error(1)
}

func (m *mockRepo) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (*models.Driver, bool, error) {
	args := m.Called(ctx, id, lat, lng)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Driver), args.Bool(1), args.Error(2)
}

type mockIndex struct{ mock.Mock }

func (m *mockIndex) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64, vehicle models.VehicleClass) error {
	args := m.Called(ctx, driverID, lat, lng, vehicle)
	return args.Error(0)
}

func testPublisher() *events.Publisher {
	return events.New(nil)
}

func TestGetDriver_NotFoundMapsToDriverNotFound(t *testing.T) {
	repo := new(mockRepo)
	index := new(mockIndex)
	svc := NewService(repo, index, testPublisher())

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, errors.New("no rows"))

	_, err := svc.GetDriver(context.Background(), id)
	require.Error(t, err)
	appErr, ok := dispatcherr.As(err)
	require.True(t, ok)
	assert.Equal(t, dispatcherr.CodeDriverNotFound, appErr.Code)
}

func TestUpdateLocation_PersistsAndRefreshesIndex(t *testing.T) {
	repo := new(mockRepo)
	index := new(mockIndex)
	svc := NewService(repo, index, testPublisher())

	id := uuid.New()
	updated := &models.Driver{ID: id, VehicleClass: models.VehicleSedan, Lat: 12.9, Lng: 77.6}
	repo.On("UpdateLocation", mock.Anything, id, 12.9, 77.6).Return(updated, false, nil)
	index.On("UpdateLocation", mock.Anything, id, 12.9, 77.6, models.VehicleSedan).Return(nil)

	got, err := svc.UpdateLocation(context.Background(), id, 12.9, 77.6)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	index.AssertExpectations(t)
}

func TestUpdateLocation_RepoErrorMapsToDriverNotFound(t *testing.T) {
	repo := new(mockRepo)
	index := new(mockIndex)
	svc := NewService(repo, index, testPublisher())

	id := uuid.New()
	repo.On("UpdateLocation", mock.Anything, id, 0.0, 0.0).Return(nil, false, errors.New("no rows"))

	_, err := svc.UpdateLocation(context.Background(), id, 0, 0)
	require.Error(t, err)
	appErr, ok := dispatcherr.As(err)
	require.True(t, ok)
	assert.Equal(t, dispatcherr.CodeDriverNotFound, appErr.Code)
	index.AssertNotCalled(t, "UpdateLocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListDrivers_ReturnsRepoResults(t *testing.T) {
	repo := new(mockRepo)
	index := new(mockIndex)
	svc := NewService(repo, index, testPublisher())

	want := []*models.Driver{{ID: uuid.New()}, {ID: uuid.New()}}
	repo.On("List", mock.Anything, listLimit).Return(want, nil)

	got, err := svc.ListDrivers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
