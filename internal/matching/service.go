// Package matching implements the dispatch engine: it searches the driver
// location index for candidates, locks one into an offer with a TTL, and
// runs the background loop that expires unanswered offers and retries.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/events"
	"github.com/ridecore/dispatch/internal/locationindex"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/ridecore/dispatch/internal/obsmetrics"
	"github.com/ridecore/dispatch/pkg/logger"
	"go.uber.org/zap"
)

const (
	// OfferTTL is how long a driver has to respond to an offer.
	OfferTTL = 20 * time.Second
	// MaxOffersPerRide caps how many drivers a single ride will be offered to.
	MaxOffersPerRide = 3

	initialRadiusKm = 2.0
	expandedRadiusKm = 5.0
	candidateCount   = 10

	expiryPollInterval = time.Second
)

type locationFinder interface {
	FindNearby(ctx context.Context, lat, lng float64, vehicle models.VehicleClass, radiusKm float64, count int) ([]locationindex.Candidate, error)
	IsAlive(ctx context.Context, driverID uuid.UUID) (bool, error)
}

type expiryQueue interface {
	ZAddScore(ctx context.Context, key string, score float64, member interface{}) error
	ZPopBelow(ctx context.Context, key string, max float64) ([]string, error)
}

const expiryQueueKey = "offer_expiry_queue"

// repoPort is the transactional database access FindAndOffer and the
// expiry loop need, satisfied by *Repository in production and faked in
// tests since pgx transactions aren't mockable without a live server.
type repoPort interface {
	OfferedDriverIDs(ctx context.Context, rideID uuid.UUID) (map[uuid.UUID]bool, error)
	LockAndOffer(ctx context.Context, rideID, driverID uuid.UUID, offerTTL time.Duration) (*models.RideOffer, error)
	MarkNoDrivers(ctx context.Context, rideID uuid.UUID) error
	GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	GetOffer(ctx context.Context, offerID uuid.UUID) (*models.RideOffer, error)
	ExpireOffer(ctx context.Context, offerID uuid.UUID) (bool, error)
	ReleaseDriverIfBusy(ctx context.Context, driverID uuid.UUID) error
	ReopenRideForMatching(ctx context.Context, rideID uuid.UUID) (bool, error)
}

// noDriversNotifier is the best-effort SMS nudge sent when a ride exhausts
// its offer budget.
type noDriversNotifier interface {
	NotifyNoDrivers(riderPhone string)
}

// riderPhoneLookup resolves a rider's phone for the SMS notifier.
type riderPhoneLookup interface {
	GetRiderPhone(ctx context.Context, riderID uuid.UUID) (string, error)
}

// Engine runs find_and_offer and the expiry poll loop.
type Engine struct {
	repo      repoPort
	locations locationFinder
	queue     expiryQueue
	publisher *events.Publisher

	notifier noDriversNotifier
	riders   riderPhoneLookup
}

func NewEngine(repo repoPort, locations locationFinder, queue expiryQueue, publisher *events.Publisher) *Engine {
	return &Engine{repo: repo, locations: locations, queue: queue, publisher: publisher}
}

// EnableSMSNotifications turns on the no_drivers SMS nudge. Optional: an
// Engine with no notifier configured only publishes the NATS event.
func (e *Engine) EnableSMSNotifications(notifier noDriversNotifier, riders riderPhoneLookup) {
	e.notifier = notifier
	e.riders = riders
}

// FindAndOffer attempts to match ride to one available driver. It returns
// the created offer, or nil if no candidate was offerable (the ride either
// stays in matching for a later retry, or has been transitioned to
// no_drivers if its offer budget is exhausted).
func (e *Engine) FindAndOffer(ctx context.Context, ride *models.Ride) (*models.RideOffer, error) {
	start := time.Now()
	offer, outcome, err := e.findAndOffer(ctx, ride)
	obsmetrics.RecordMatchingCycle(outcome, time.Since(start))
	return offer, err
}

func (e *Engine) findAndOffer(ctx context.Context, ride *models.Ride) (*models.RideOffer, string, error) {
	excluded, err := e.repo.OfferedDriverIDs(ctx, ride.ID)
	if err != nil {
		return nil, obsmetrics.OutcomeError, err
	}

	candidates, searchErr := e.searchCandidates(ctx, ride)
	if searchErr != nil {
		// losing the geo-index degrades matching, it doesn't fail the ride:
		// the ride stays in matching for a retry once the index is back.
		// exhaustion is deliberately not evaluated on a failed search.
		obsmetrics.RecordGeoSearchFailure()
		logger.Error("candidate search failed, leaving ride in matching",
			zap.String("ride_id", ride.ID.String()), zap.Error(searchErr))
		return nil, obsmetrics.OutcomeError, nil
	}

	for _, candidate := range candidates {
		if excluded[candidate.DriverID] {
			continue
		}
		alive, err := e.locations.IsAlive(ctx, candidate.DriverID)
		if err != nil {
			logger.Error("failed to check driver heartbeat", zap.String("driver_id", candidate.DriverID.String()), zap.Error(err))
			continue
		}
		if !alive {
			continue
		}

		offer, err := e.repo.LockAndOffer(ctx, ride.ID, candidate.DriverID, OfferTTL)
		if errors.Is(err, ErrDriverUnavailable) {
			continue
		}
		if err != nil {
			return nil, obsmetrics.OutcomeError, err
		}

		if err := e.queue.ZAddScore(ctx, expiryQueueKey, float64(offer.ExpiresAt.Unix()), offer.ID.String()); err != nil {
			// the offer already committed and stays so; the failure is only
			// logged. The expiry loop reads nothing but the queue, so an offer
			// missing from it is not expired by the loop.
			logger.Error("failed to enqueue offer expiry", zap.String("offer_id", offer.ID.String()), zap.Error(err))
		}

		e.publisher.PublishRide(ride.ID.String(), events.RideOffered, map[string]interface{}{
			"offer_id":  offer.ID.String(),
			"driver_id": candidate.DriverID.String(),
		})
		e.publisher.PublishDriver(candidate.DriverID.String(), events.RideOffered, map[string]interface{}{
			"ride_id":     ride.ID.String(),
			"offer_id":    offer.ID.String(),
			"pickup_lat":  ride.PickupLat,
			"pickup_lng":  ride.PickupLng,
			"expires_at":  offer.ExpiresAt,
		})
		obsmetrics.RecordOfferIssued()
		return offer, obsmetrics.OutcomeOffered, nil
	}

	if ride.OffersMade >= ride.MaxOffers {
		if err := e.repo.MarkNoDrivers(ctx, ride.ID); err != nil {
			return nil, obsmetrics.OutcomeError, err
		}
		e.publisher.PublishRide(ride.ID.String(), events.RideNoDrivers, map[string]interface{}{
			"reason": "max_offers_exhausted",
		})
		e.notifyNoDrivers(ctx, ride.RiderID)
		return nil, obsmetrics.OutcomeNoDrivers, nil
	}
	return nil, obsmetrics.OutcomeNoCandidates, nil
}

// searchCandidates queries the location index at the initial radius and
// retries once at the expanded radius when nothing was found.
func (e *Engine) searchCandidates(ctx context.Context, ride *models.Ride) ([]locationindex.Candidate, error) {
	candidates, err := e.locations.FindNearby(ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, initialRadiusKm, candidateCount)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return e.locations.FindNearby(ctx, ride.PickupLat, ride.PickupLng, ride.VehicleClass, expandedRadiusKm, candidateCount)
	}
	return candidates, nil
}

func (e *Engine) notifyNoDrivers(ctx context.Context, riderID uuid.UUID) {
	if e.notifier == nil || e.riders == nil {
		return
	}
	phone, err := e.riders.GetRiderPhone(ctx, riderID)
	if err != nil {
		logger.Error("failed to look up rider phone for no_drivers notification", zap.String("rider_id", riderID.String()), zap.Error(err))
		return
	}
	e.notifier.NotifyNoDrivers(phone)
}

// RunExpiryLoop polls the expiry queue every second until ctx is cancelled,
// processing every offer whose deadline has passed.
func (e *Engine) RunExpiryLoop(ctx context.Context) {
	ticker := time.NewTicker(expiryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	expired, err := e.queue.ZPopBelow(ctx, expiryQueueKey, float64(time.Now().Unix()))
	if err != nil {
		obsmetrics.RecordExpiryPollError()
		logger.Error("failed to poll offer expiry queue", zap.Error(err))
		return
	}
	for _, offerIDStr := range expired {
		offerID, err := uuid.Parse(offerIDStr)
		if err != nil {
			continue
		}
		if err := e.handleOfferExpired(ctx, offerID); err != nil {
			obsmetrics.RecordExpiryPollError()
			logger.Error("failed to handle expired offer", zap.String("offer_id", offerIDStr), zap.Error(err))
		}
	}
}

func (e *Engine) handleOfferExpired(ctx context.Context, offerID uuid.UUID) error {
	offer, err := e.repo.GetOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.Status != models.OfferPending {
		return nil
	}

	expired, err := e.repo.ExpireOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if !expired {
		return nil
	}
	obsmetrics.RecordOfferExpired()

	if err := e.repo.ReleaseDriverIfBusy(ctx, offer.DriverID); err != nil {
		return err
	}

	reopened, err := e.repo.ReopenRideForMatching(ctx, offer.RideID)
	if err != nil {
		return err
	}
	if !reopened {
		return nil
	}

	ride, err := e.repo.GetRide(ctx, offer.RideID)
	if err != nil {
		return err
	}
	ride.Status = models.RideMatching
	_, err = e.FindAndOffer(ctx, ride)
	return err
}
