package rides

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridecore/dispatch/internal/models"
)

// Repository is the ride service's Postgres access: plain reads, plus the
// two multi-row transactions (accept/decline, cancel) whose writes to the
// ride, offer and driver rows must commit as one unit.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const rideColumns = `id, rider_id, pickup_lat, pickup_lng, pickup_address, dest_lat, dest_lng, dest_address,
	vehicle_class, payment_method, surge_multiplier, estimated_fare, status, matched_driver_id,
	offers_made, max_offers, idempotency_key, created_at, updated_at`

func scanRide(row pgx.Row) (*models.Ride, error) {
	ride := &models.Ride{}
	err := row.Scan(
		&ride.ID, &ride.RiderID, &ride.PickupLat, &ride.PickupLng, &ride.PickupAddress,
		&ride.DestLat, &ride.DestLng, &ride.DestAddress, &ride.VehicleClass, &ride.PaymentMethod,
		&ride.SurgeMultiplier, &ride.EstimatedFare, &ride.Status, &ride.MatchedDriverID,
		&ride.OffersMade, &ride.MaxOffers, &ride.IdempotencyKey, &ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// Create inserts ride, populating its generated id and timestamps.
func (r *Repository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID == uuid.Nil {
		ride.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO rides (id, rider_id, pickup_lat, pickup_lng, pickup_address, dest_lat, dest_lng,
			dest_address, vehicle_class, payment_method, surge_multiplier, estimated_fare, status,
			offers_made, max_offers, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`, ride.ID, ride.RiderID, ride.PickupLat, ride.PickupLng, ride.PickupAddress, ride.DestLat,
		ride.DestLng, ride.DestAddress, ride.VehicleClass, ride.PaymentMethod, ride.SurgeMultiplier,
		ride.EstimatedFare, ride.Status, ride.OffersMade, ride.MaxOffers, ride.IdempotencyKey,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return fmt.Errorf("rides: create: %w", err)
	}
	return nil
}

// GetByID loads a ride by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	ride, err := scanRide(r.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("rides: get: %w", err)
	}
	return ride, nil
}

// List returns the most recently created rides, up to limit.
func (r *Repository) List(ctx context.Context, limit int) ([]*models.Ride, error) {
	rows, err := r.db.Query(ctx, `SELECT `+rideColumns+` FROM rides ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("rides: list: %w", err)
	}
	defer rows.Close()

	var out []*models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("rides: scan list: %w", err)
		}
		out = append(out, ride)
	}
	return out, rows.Err()
}

// ErrOfferNotFound signals no pending offer exists for (rideID, driverID).
var ErrOfferNotFound = errors.New("rides: no pending offer for driver")

// ErrRideNotInExpectedStatus signals a guarded transition's WHERE clause
// matched zero rows: the ride moved under the caller between read and write.
var ErrRideNotInExpectedStatus = errors.New("rides: ride not in expected status")

// AcceptOffer resolves a driver's response to their pending offer on ride.
// Declining flips the offer to declined, frees the driver, and reopens the
// ride for matching. Accepting flips the offer to accepted, binds the
// driver to the ride, moves the driver to on_trip, and expires every other
// pending offer for the ride (freeing their drivers too). Both branches
// commit as one transaction; the refreshed ride is returned.
func (r *Repository) AcceptOffer(ctx context.Context, rideID, driverID uuid.UUID, accept bool) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rides: begin accept tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var offerID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM ride_offers
		WHERE ride_id = $1 AND driver_id = $2 AND status = $3
		FOR UPDATE
	`, rideID, driverID, models.OfferPending).Scan(&offerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("rides: lock offer: %w", err)
	}

	if accept {
		if err := acceptOfferTx(ctx, tx, rideID, driverID, offerID); err != nil {
			return nil, err
		}
	} else {
		if err := declineOfferTx(ctx, tx, rideID, driverID, offerID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rides: commit accept: %w", err)
	}
	return r.GetByID(ctx, rideID)
}

func declineOfferTx(ctx context.Context, tx pgx.Tx, rideID, driverID, offerID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `UPDATE ride_offers SET status = $1 WHERE id = $2`,
		models.OfferDeclined, offerID); err != nil {
		return fmt.Errorf("rides: decline offer: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, models.DriverAvailable, driverID, models.DriverBusy); err != nil {
		return fmt.Errorf("rides: release declining driver: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE rides SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, models.RideMatching, rideID, models.RideOffered)
	if err != nil {
		return fmt.Errorf("rides: reopen ride: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrRideNotInExpectedStatus
	}
	return nil
}

func acceptOfferTx(ctx context.Context, tx pgx.Tx, rideID, driverID, offerID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `UPDATE ride_offers SET status = $1 WHERE id = $2`,
		models.OfferAccepted, offerID); err != nil {
		return fmt.Errorf("rides: accept offer: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET status = $1, matched_driver_id = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.RideAccepted, driverID, rideID, models.RideOffered)
	if err != nil {
		return fmt.Errorf("rides: match ride: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrRideNotInExpectedStatus
	}

	if _, err := tx.Exec(ctx, `
		UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, models.DriverOnTrip, driverID, models.DriverBusy); err != nil {
		return fmt.Errorf("rides: bind matched driver: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, driver_id FROM ride_offers
		WHERE ride_id = $1 AND id != $2 AND status = $3
		FOR UPDATE
	`, rideID, offerID, models.OfferPending)
	if err != nil {
		return fmt.Errorf("rides: lock sibling offers: %w", err)
	}
	type sibling struct {
		offerID, driverID uuid.UUID
	}
	var siblings []sibling
	for rows.Next() {
		var s sibling
		if err := rows.Scan(&s.offerID, &s.driverID); err != nil {
			rows.Close()
			return fmt.Errorf("rides: scan sibling offer: %w", err)
		}
		siblings = append(siblings, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rides: iterate sibling offers: %w", err)
	}

	for _, s := range siblings {
		if _, err := tx.Exec(ctx, `UPDATE ride_offers SET status = $1 WHERE id = $2`,
			models.OfferExpired, s.offerID); err != nil {
			return fmt.Errorf("rides: expire sibling offer: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
		`, models.DriverAvailable, s.driverID, models.DriverBusy); err != nil {
			return fmt.Errorf("rides: release sibling driver: %w", err)
		}
	}
	return nil
}

// Cancel transitions ride to cancelled from any of the allowed pre-trip
// statuses. Any driver still bound to the ride is released: the matched
// driver if one was accepted, and the driver behind a still-pending offer
// (who is busy but not yet matched) along with expiring that offer. Returns
// ErrRideNotInExpectedStatus if the ride is not in a cancellable status.
func (r *Repository) Cancel(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rides: begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var matchedDriverID *uuid.UUID
	err = tx.QueryRow(ctx, `SELECT matched_driver_id FROM rides WHERE id = $1 FOR UPDATE`, rideID).
		Scan(&matchedDriverID)
	if err != nil {
		return nil, fmt.Errorf("rides: lock ride for cancel: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)
	`, models.RideCancelled, rideID, []models.RideStatus{
		models.RidePending, models.RideMatching, models.RideOffered, models.RideAccepted,
		models.RideDriverEnRoute, models.RideArrived,
	})
	if err != nil {
		return nil, fmt.Errorf("rides: cancel ride: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, ErrRideNotInExpectedStatus
	}

	rows, err := tx.Query(ctx, `
		SELECT id, driver_id FROM ride_offers
		WHERE ride_id = $1 AND status = $2
		FOR UPDATE
	`, rideID, models.OfferPending)
	if err != nil {
		return nil, fmt.Errorf("rides: lock pending offers for cancel: %w", err)
	}
	type pendingOffer struct {
		offerID, driverID uuid.UUID
	}
	var pending []pendingOffer
	for rows.Next() {
		var p pendingOffer
		if err := rows.Scan(&p.offerID, &p.driverID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("rides: scan pending offer: %w", err)
		}
		pending = append(pending, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rides: iterate pending offers: %w", err)
	}

	for _, p := range pending {
		if _, err := tx.Exec(ctx, `UPDATE ride_offers SET status = $1 WHERE id = $2`,
			models.OfferExpired, p.offerID); err != nil {
			return nil, fmt.Errorf("rides: expire pending offer on cancel: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
		`, models.DriverAvailable, p.driverID, models.DriverBusy); err != nil {
			return nil, fmt.Errorf("rides: release offered driver on cancel: %w", err)
		}
	}

	if matchedDriverID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE drivers SET status = $1, updated_at = now()
			WHERE id = $2 AND status = ANY($3)
		`, models.DriverAvailable, *matchedDriverID, []models.DriverStatus{models.DriverBusy, models.DriverOnTrip}); err != nil {
			return nil, fmt.Errorf("rides: release cancelled ride's driver: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rides: commit cancel: %w", err)
	}
	return r.GetByID(ctx, rideID)
}

// GetRiderPhone looks up the phone number to notify on a match.
func (r *Repository) GetRiderPhone(ctx context.Context, riderID uuid.UUID) (string, error) {
	var phone string
	err := r.db.QueryRow(ctx, `SELECT phone FROM riders WHERE id = $1`, riderID).Scan(&phone)
	if err != nil {
		return "", fmt.Errorf("rides: get rider phone: %w", err)
	}
	return phone, nil
}

// GetDriverName looks up the display name for a matched driver's SMS nudge.
func (r *Repository) GetDriverName(ctx context.Context, driverID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM drivers WHERE id = $1`, driverID).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("rides: get driver name: %w", err)
	}
	return name, nil
}
