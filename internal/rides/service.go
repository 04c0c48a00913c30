// Package rides implements ride creation, offer acceptance and cancellation:
// the dispatch core's primary rider-facing lifecycle.
package rides

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/fare"
	"github.com/ridecore/dispatch/internal/geo"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/ridecore/dispatch/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// repoPort is the database access CreateRide/AcceptOffer/CancelRide need,
// satisfied by *Repository in production and faked in tests.
type repoPort interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	List(ctx context.Context, limit int) ([]*models.Ride, error)
	AcceptOffer(ctx context.Context, rideID, driverID uuid.UUID, accept bool) (*models.Ride, error)
	Cancel(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
}

// surgeEngine is the demand/multiplier side of C5 that ride creation drives.
type surgeEngine interface {
	RecordDemand(ctx context.Context, lat, lng float64) error
	GetMultiplier(ctx context.Context, lat, lng float64, vehicle models.VehicleClass) (float64, error)
}

// matcher is the C7 entry point invoked inline once a ride is persisted.
type matcher interface {
	FindAndOffer(ctx context.Context, ride *models.Ride) (*models.RideOffer, error)
}

// rideCache is the C3 snapshot cache: consulted on reads, warmed after
// writes, invalidated on state-changing writes.
type rideCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	Set(ctx context.Context, ride *models.Ride) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

const defaultMaxOffers = 3
const listLimit = 50

// matchedNotifier is the best-effort SMS nudge sent once a driver accepts.
type matchedNotifier interface {
	NotifyMatched(riderPhone, driverName string)
}

// contactLookup resolves the rider/driver phone and name for the SMS notifier.
type contactLookup interface {
	GetRiderPhone(ctx context.Context, riderID uuid.UUID) (string, error)
	GetDriverName(ctx context.Context, driverID uuid.UUID) (string, error)
}

// Service implements create_ride, accept_offer and cancel_ride.
type Service struct {
	repo      repoPort
	surge     surgeEngine
	matching  matcher
	cache     rideCache
	publisher *events.Publisher

	notifier matchedNotifier
	contacts contactLookup
}

func NewService(repo repoPort, surge surgeEngine, matching matcher, cache rideCache, publisher *events.Publisher) *Service {
	return &Service{repo: repo, surge: surge, matching: matching, cache: cache, publisher: publisher}
}

// EnableSMSNotifications turns on the ride:matched SMS nudge. Optional: a
// Service with no notifier configured only publishes the NATS event.
func (s *Service) EnableSMSNotifications(notifier matchedNotifier, contacts contactLookup) {
	s.notifier = notifier
	s.contacts = contacts
}

// CreateRequest is the input to CreateRide.
type CreateRequest struct {
	RiderID       uuid.UUID
	PickupLat     float64
	PickupLng     float64
	PickupAddress string
	DestLat       float64
	DestLng       float64
	DestAddress   string
	VehicleClass  models.VehicleClass
	PaymentMethod models.PaymentMethod
	IdempotencyKey *string
}

// CreateRide records demand, prices the trip, persists it in status
// matching, publishes ride:requested, and attempts an immediate match.
func (s *Service) CreateRide(ctx context.Context, req CreateRequest) (*models.Ride, error) {
	// surge is a cache-backed signal, not a source of truth: losing the kv
	// store degrades pricing to a 1.0 multiplier, it never fails the ride.
	if err := s.surge.RecordDemand(ctx, req.PickupLat, req.PickupLng); err != nil {
		logger.Error("failed to record demand, continuing", zap.Error(err))
	}

	surgeVal, err := s.surge.GetMultiplier(ctx, req.PickupLat, req.PickupLng, req.VehicleClass)
	if err != nil {
		logger.Error("failed to get surge multiplier, defaulting to 1.0", zap.Error(err))
		surgeVal = 1.0
	}
	surge := decimal.NewFromFloat(surgeVal)

	distanceKm := decimal.NewFromFloat(geo.Haversine(req.PickupLat, req.PickupLng, req.DestLat, req.DestLng))
	estimatedFare := fare.Estimate(req.VehicleClass, distanceKm, surge)

	ride := &models.Ride{
		RiderID:         req.RiderID,
		PickupLat:       req.PickupLat,
		PickupLng:       req.PickupLng,
		PickupAddress:   req.PickupAddress,
		DestLat:         req.DestLat,
		DestLng:         req.DestLng,
		DestAddress:     req.DestAddress,
		VehicleClass:    req.VehicleClass,
		PaymentMethod:   req.PaymentMethod,
		SurgeMultiplier: surge,
		EstimatedFare:   estimatedFare,
		Status:          models.RideMatching,
		MaxOffers:       defaultMaxOffers,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if err := s.repo.Create(ctx, ride); err != nil {
		return nil, dispatcherr.Internal("create ride", err)
	}

	s.publisher.PublishRide(ride.ID.String(), events.RideRequested, map[string]interface{}{
		"status": string(ride.Status),
	})

	if _, err := s.matching.FindAndOffer(ctx, ride); err != nil {
		return nil, dispatcherr.Internal("find and offer", err)
	}

	return s.refresh(ctx, ride.ID)
}

// GetRide returns a ride by id, serving the cached snapshot when one is
// present and falling back to the database, or RideNotFound.
func (s *Service) GetRide(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	if cached, err := s.cache.Get(ctx, id); err == nil {
		return cached, nil
	}
	ride, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, dispatcherr.RideNotFound(err)
	}
	if err := s.cache.Set(ctx, ride); err != nil {
		logger.Error("failed to warm ride cache", zap.String("ride_id", id.String()), zap.Error(err))
	}
	return ride, nil
}

// ListRides returns the most recent rides, newest first.
func (s *Service) ListRides(ctx context.Context) ([]*models.Ride, error) {
	rides, err := s.repo.List(ctx, listLimit)
	if err != nil {
		return nil, dispatcherr.Internal("list rides", err)
	}
	return rides, nil
}

// AcceptOffer resolves a driver's response to their pending offer. On
// decline it re-invokes find_and_offer for the next candidate; on accept
// it invalidates the ride cache and publishes ride:matched.
func (s *Service) AcceptOffer(ctx context.Context, rideID, driverID uuid.UUID, accept bool) (*models.Ride, error) {
	ride, err := s.repo.AcceptOffer(ctx, rideID, driverID, accept)
	if err != nil {
		if errors.Is(err, ErrOfferNotFound) {
			return nil, dispatcherr.DriverUnavailable("no pending offer for this driver")
		}
		if errors.Is(err, ErrRideNotInExpectedStatus) {
			return nil, dispatcherr.InvalidStateTransition("ride is no longer offered")
		}
		return nil, dispatcherr.Internal("resolve offer", err)
	}

	if !accept {
		if _, err := s.matching.FindAndOffer(ctx, ride); err != nil {
			return nil, dispatcherr.Internal("find and offer after decline", err)
		}
		return s.refresh(ctx, ride.ID)
	}

	if err := s.cache.Invalidate(ctx, ride.ID); err != nil {
		logger.Error("failed to invalidate ride cache", zap.String("ride_id", ride.ID.String()), zap.Error(err))
	}
	s.publisher.PublishRide(ride.ID.String(), events.RideMatched, map[string]interface{}{
		"driver_id": driverID.String(),
	})
	s.notifyMatched(ctx, ride.RiderID, driverID)
	return ride, nil
}

func (s *Service) notifyMatched(ctx context.Context, riderID, driverID uuid.UUID) {
	if s.notifier == nil || s.contacts == nil {
		return
	}
	phone, err := s.contacts.GetRiderPhone(ctx, riderID)
	if err != nil {
		logger.Error("failed to look up rider phone for matched notification", zap.String("rider_id", riderID.String()), zap.Error(err))
		return
	}
	name, err := s.contacts.GetDriverName(ctx, driverID)
	if err != nil {
		logger.Error("failed to look up driver name for matched notification", zap.String("driver_id", driverID.String()), zap.Error(err))
		return
	}
	s.notifier.NotifyMatched(phone, name)
}

// CancelRide transitions ride to cancelled from any pre-trip status,
// releasing its bound driver if one was assigned.
func (s *Service) CancelRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.Cancel(ctx, rideID)
	if err != nil {
		if errors.Is(err, ErrRideNotInExpectedStatus) {
			return nil, dispatcherr.InvalidStateTransition("ride cannot be cancelled from its current status")
		}
		return nil, dispatcherr.Internal("cancel ride", err)
	}
	if err := s.cache.Invalidate(ctx, ride.ID); err != nil {
		logger.Error("failed to invalidate ride cache", zap.String("ride_id", ride.ID.String()), zap.Error(err))
	}
	s.publisher.PublishRide(ride.ID.String(), events.RideCancelled, nil)
	return ride, nil
}

// refresh reloads ride and warms the cache, used after a write so callers
// observe the post-match/post-transition snapshot.
func (s *Service) refresh(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("rides: refresh: %w", err)
	}
	if err := s.cache.Set(ctx, ride); err != nil {
		logger.Error("failed to warm ride cache", zap.String("ride_id", id.String()), zap.Error(err))
	}
	return ride, nil
}
