package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridecore/dispatch/internal/models"
)

// Repository is the matching engine's transactional database access: the
// driver lock/offer/ride-status flip that must commit as one unit.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// OfferedDriverIDs returns every driver_id that has ever received an offer
// for rideID, regardless of offer status, forming the matching exclusion set.
func (r *Repository) OfferedDriverIDs(ctx context.Context, rideID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT driver_id FROM ride_offers WHERE ride_id = $1`, rideID)
	if err != nil {
		return nil, fmt.Errorf("matching: query offered drivers: %w", err)
	}
	defer rows.Close()

	excluded := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("matching: scan offered driver: %w", err)
		}
		excluded[id] = true
	}
	return excluded, rows.Err()
}

// ErrDriverUnavailable signals the candidate driver could not be locked
// into busy status (already taken, or a concurrent locker holds the row).
var ErrDriverUnavailable = errors.New("matching: driver unavailable")

// LockAndOffer attempts to atomically flip driverID from available to busy,
// create a pending offer with the given TTL, and transition the ride to
// offered, incrementing its offer count. All three writes commit as one
// transaction; on any failure (including the driver no longer being
// available) the whole attempt is rolled back and ErrDriverUnavailable (or
// the underlying error) is returned.
func (r *Repository) LockAndOffer(ctx context.Context, rideID, driverID uuid.UUID, offerTTL time.Duration) (*models.RideOffer, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("matching: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM drivers
		WHERE id = $1 AND status = $2
		FOR UPDATE SKIP LOCKED
	`, driverID, models.DriverAvailable).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverUnavailable
		}
		return nil, fmt.Errorf("matching: lock driver: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2`,
		models.DriverBusy, driverID); err != nil {
		return nil, fmt.Errorf("matching: mark driver busy: %w", err)
	}

	offer := &models.RideOffer{
		ID:        uuid.New(),
		RideID:    rideID,
		DriverID:  driverID,
		Status:    models.OfferPending,
		ExpiresAt: time.Now().Add(offerTTL),
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO ride_offers (id, ride_id, driver_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, offer.ID, offer.RideID, offer.DriverID, offer.Status, offer.ExpiresAt).Scan(&offer.CreatedAt); err != nil {
		return nil, fmt.Errorf("matching: insert offer: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET status = $1, offers_made = offers_made + 1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.RideOffered, rideID, models.RideMatching)
	if err != nil {
		return nil, fmt.Errorf("matching: update ride status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("matching: ride %s not in matching status", rideID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("matching: commit offer: %w", err)
	}
	return offer, nil
}

// MarkNoDrivers transitions the ride to no_drivers, used once offers_made
// has reached max_offers with no offerable candidate remaining.
func (r *Repository) MarkNoDrivers(ctx context.Context, rideID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.RideNoDrivers, rideID, models.RideMatching)
	if err != nil {
		return fmt.Errorf("matching: mark no_drivers: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("matching: ride %s not in matching status", rideID)
	}
	return nil
}

// GetRide loads a ride by id.
func (r *Repository) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride := &models.Ride{}
	err := r.db.QueryRow(ctx, `
		SELECT id, rider_id, pickup_lat, pickup_lng, dest_lat, dest_lng, vehicle_class,
			payment_method, surge_multiplier, estimated_fare, status, matched_driver_id,
			offers_made, max_offers, created_at, updated_at
		FROM rides WHERE id = $1
	`, rideID).Scan(
		&ride.ID, &ride.RiderID, &ride.PickupLat, &ride.PickupLng, &ride.DestLat, &ride.DestLng,
		&ride.VehicleClass, &ride.PaymentMethod, &ride.SurgeMultiplier, &ride.EstimatedFare,
		&ride.Status, &ride.MatchedDriverID, &ride.OffersMade, &ride.MaxOffers,
		&ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("matching: get ride: %w", err)
	}
	return ride, nil
}

// GetOffer loads an offer by id.
func (r *Repository) GetOffer(ctx context.Context, offerID uuid.UUID) (*models.RideOffer, error) {
	offer := &models.RideOffer{}
	err := r.db.QueryRow(ctx, `
		SELECT id, ride_id, driver_id, status, expires_at, created_at
		FROM ride_offers WHERE id = $1
	`, offerID).Scan(&offer.ID, &offer.RideID, &offer.DriverID, &offer.Status, &offer.ExpiresAt, &offer.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("matching: get offer: %w", err)
	}
	return offer, nil
}

// ExpireOffer transitions a pending offer to expired. Returns false if the
// offer was no longer pending (already accepted or declined) so the caller
// can skip the rest of the expiry branch.
func (r *Repository) ExpireOffer(ctx context.Context, offerID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE ride_offers SET status = $1 WHERE id = $2 AND status = $3
	`, models.OfferExpired, offerID, models.OfferPending)
	if err != nil {
		return false, fmt.Errorf("matching: expire offer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseDriverIfBusy transitions driverID back to available if it is
// currently busy, used when its offer expires without being accepted.
func (r *Repository) ReleaseDriverIfBusy(ctx context.Context, driverID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, models.DriverAvailable, driverID, models.DriverBusy)
	if err != nil {
		return fmt.Errorf("matching: release driver: %w", err)
	}
	return nil
}

// ReopenRideForMatching transitions an offered ride back to matching so a
// fresh find_and_offer attempt can run, used after its active offer expires.
func (r *Repository) ReopenRideForMatching(ctx context.Context, rideID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, models.RideMatching, rideID, models.RideOffered)
	if err != nil {
		return false, fmt.Errorf("matching: reopen ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetRiderPhone looks up the phone number to notify on a no_drivers outcome.
func (r *Repository) GetRiderPhone(ctx context.Context, riderID uuid.UUID) (string, error) {
	var phone string
	err := r.db.QueryRow(ctx, `SELECT phone FROM riders WHERE id = $1`, riderID).Scan(&phone)
	if err != nil {
		return "", fmt.Errorf("matching: get rider phone: %w", err)
	}
	return phone, nil
}
