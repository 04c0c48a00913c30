package drivers

import (
	"context"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/models"
)

const listLimit = 100

// repoPort is the database access the driver service needs.
type repoPort interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	List(ctx context.Context, limit int) ([]*models.Driver, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (driver *models.Driver, cameOnline bool, err error)
}

// geoIndex is the C2 location index a heartbeat must also update.
type geoIndex interface {
	UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64, vehicle models.VehicleClass) error
}

// Service implements the driver identity and location-heartbeat operations.
type Service struct {
	repo      repoPort
	index     geoIndex
	publisher *events.Publisher
}

func NewService(repo repoPort, index geoIndex, publisher *events.Publisher) *Service {
	return &Service{repo: repo, index: index, publisher: publisher}
}

// GetDriver loads a driver by id.
func (s *Service) GetDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	driver, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, dispatcherr.DriverNotFound(err)
	}
	return driver, nil
}

// ListDrivers returns the known drivers, ordered by name.
func (s *Service) ListDrivers(ctx context.Context) ([]*models.Driver, error) {
	drivers, err := s.repo.List(ctx, listLimit)
	if err != nil {
		return nil, dispatcherr.Internal("list drivers", err)
	}
	return drivers, nil
}

// UpdateLocation is the driver-app location heartbeat: it persists the new
// point in Postgres and refreshes the driver's entry (and liveness TTL) in
// the geo-index, in the driver's own vehicle class.
func (s *Service) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (*models.Driver, error) {
	driver, cameOnline, err := s.repo.UpdateLocation(ctx, id, lat, lng)
	if err != nil {
		return nil, dispatcherr.DriverNotFound(err)
	}
	if err := s.index.UpdateLocation(ctx, id, lat, lng, driver.VehicleClass); err != nil {
		return nil, dispatcherr.Internal("update location index", err)
	}
	s.publisher.PublishDriver(id.String(), events.DriverLocationUpdate, map[string]interface{}{
		"lat": lat, "lng": lng,
	})
	if cameOnline {
		s.publisher.PublishDriver(id.String(), events.DriverStatusChanged, map[string]interface{}{
			"status": string(driver.Status),
		})
	}
	return driver, nil
}
