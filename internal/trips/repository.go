package trips

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/shopspring/decimal"
)

// Repository is the trip service's Postgres access. Starting and ending a
// trip each touch the trip row plus its ride and driver, so both are single
// transactions rather than a sequence of independently-committed writes.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const tripColumns = `id, ride_id, driver_id, rider_id, status, started_at, completed_at,
	distance_m, duration_s, base_fare, distance_fare, time_fare, surge_multiplier, total_fare, created_at`

func scanTrip(row pgx.Row) (*models.Trip, error) {
	trip := &models.Trip{}
	err := row.Scan(
		&trip.ID, &trip.RideID, &trip.DriverID, &trip.RiderID, &trip.Status, &trip.StartedAt,
		&trip.CompletedAt, &trip.DistanceMeters, &trip.DurationSeconds, &trip.BaseFare,
		&trip.DistanceFare, &trip.TimeFare, &trip.SurgeMultiplier, &trip.TotalFare, &trip.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// GetByID loads a trip by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	trip, err := scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("trips: get: %w", err)
	}
	return trip, nil
}

// ErrRideNotInExpectedStatus signals the ride's status no longer matches
// what StartTrip requires, so the caller should surface InvalidStateTransition.
var ErrRideNotInExpectedStatus = errors.New("trips: ride not in expected status")

var startableRideStatuses = []models.RideStatus{
	models.RideAccepted, models.RideDriverEnRoute, models.RideArrived,
}

// StartTrip transitions ride to in_trip and creates a trip in_progress with
// the ride's current surge multiplier, committing both as one transaction.
func (r *Repository) StartTrip(ctx context.Context, rideID uuid.UUID) (*models.Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("trips: begin start tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var riderID, driverID uuid.UUID
	var matchedDriverID *uuid.UUID
	var surgeMultiplier decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT rider_id, matched_driver_id, surge_multiplier FROM rides WHERE id = $1 FOR UPDATE
	`, rideID).Scan(&riderID, &matchedDriverID, &surgeMultiplier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trips: ride not found: %w", err)
		}
		return nil, fmt.Errorf("trips: lock ride for start: %w", err)
	}
	if matchedDriverID == nil {
		return nil, ErrRideNotInExpectedStatus
	}
	driverID = *matchedDriverID

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET status = $1, updated_at = now() WHERE id = $2 AND status = ANY($3)
	`, models.RideInTrip, rideID, startableRideStatuses)
	if err != nil {
		return nil, fmt.Errorf("trips: transition ride to in_trip: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, ErrRideNotInExpectedStatus
	}

	trip := &models.Trip{
		ID:              uuid.New(),
		RideID:          rideID,
		DriverID:        driverID,
		RiderID:         riderID,
		Status:          models.TripInProgress,
		SurgeMultiplier: surgeMultiplier,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO trips (id, ride_id, driver_id, rider_id, status, started_at, surge_multiplier,
			base_fare, distance_fare, time_fare, total_fare)
		VALUES ($1, $2, $3, $4, $5, now(), $6, 0, 0, 0, 0)
		RETURNING started_at, created_at
	`, trip.ID, trip.RideID, trip.DriverID, trip.RiderID, trip.Status, trip.SurgeMultiplier).
		Scan(&trip.StartedAt, &trip.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("trips: insert trip: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("trips: commit start: %w", err)
	}
	return trip, nil
}

// ErrTripNotInExpectedStatus signals the trip is not in a state EndTrip can act on.
var ErrTripNotInExpectedStatus = errors.New("trips: trip not in expected status")

var endableTripStatuses = []models.TripStatus{
	models.TripStarted, models.TripInProgress, models.TripPaused,
}

// EndTrip stores the fare breakdown and measured distance/duration,
// transitions the trip to completed, its ride to completed, and releases
// the driver to available, all in one transaction.
func (r *Repository) EndTrip(ctx context.Context, tripID uuid.UUID, distanceM, durationS int, breakdown models.FareBreakdown) (*models.Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("trips: begin end tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var rideID, driverID uuid.UUID
	var status models.TripStatus
	err = tx.QueryRow(ctx, `
		SELECT ride_id, driver_id, status FROM trips WHERE id = $1 FOR UPDATE
	`, tripID).Scan(&rideID, &driverID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trips: trip not found: %w", err)
		}
		return nil, fmt.Errorf("trips: lock trip for end: %w", err)
	}

	endable := false
	for _, s := range endableTripStatuses {
		if s == status {
			endable = true
			break
		}
	}
	if !endable {
		return nil, ErrTripNotInExpectedStatus
	}

	if _, err := tx.Exec(ctx, `
		UPDATE trips SET
			status = $1, completed_at = now(), distance_m = $2, duration_s = $3,
			base_fare = $4, distance_fare = $5, time_fare = $6, total_fare = $7
		WHERE id = $8
	`, models.TripCompleted, distanceM, durationS, breakdown.BaseFare, breakdown.DistanceFare,
		breakdown.TimeFare, breakdown.TotalFare, tripID); err != nil {
		return nil, fmt.Errorf("trips: complete trip: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE rides SET status = $1, updated_at = now() WHERE id = $2
	`, models.RideCompleted, rideID); err != nil {
		return nil, fmt.Errorf("trips: complete ride: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE drivers SET status = $1, updated_at = now() WHERE id = $2
	`, models.DriverAvailable, driverID); err != nil {
		return nil, fmt.Errorf("trips: release driver: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("trips: commit end: %w", err)
	}
	return r.GetByID(ctx, tripID)
}
