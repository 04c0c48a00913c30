// Package drivers is the driver record and location-heartbeat surface: the
// Postgres row of record plus the Redis geo-index kept in step with it.
package drivers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridecore/dispatch/internal/models"
	"github.com/ridecore/dispatch/pkg/database"
)

// Repository is the driver service's Postgres access.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const driverColumns = `id, name, phone, vehicle_class, status, lat, lng, rating, created_at, updated_at`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	d := &models.Driver{}
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.VehicleClass, &d.Status,
		&d.Lat, &d.Lng, &d.Rating, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByID loads a driver by id. Driver lookups back every location
// heartbeat, so this read retries transient connection failures.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	d, err := database.RetryableQueryRow(ctx, r.db,
		`SELECT `+driverColumns+` FROM drivers WHERE id = $1`, []interface{}{id}, scanDriver)
	if err != nil {
		return nil, fmt.Errorf("drivers: get: %w", err)
	}
	return d, nil
}

// List returns up to limit drivers ordered by name.
func (r *Repository) List(ctx context.Context, limit int) ([]*models.Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY name LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("drivers: list: %w", err)
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("drivers: scan list row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("drivers: list rows: %w", err)
	}
	return out, nil
}

// UpdateLocation persists the driver's last known position. A driver found
// offline is brought available by the same update, matching the driver app
// behavior of a location heartbeat doubling as a check-in; cameOnline
// reports whether this update performed that flip.
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) (driver *models.Driver, cameOnline bool, err error) {
	row := r.db.QueryRow(ctx, `
		UPDATE drivers SET lat = $1, lng = $2,
			status = CASE WHEN status = $4 THEN $5 ELSE status END,
			updated_at = now()
		WHERE id = $3
		RETURNING `+driverColumns+`, (SELECT d.status = $4 FROM drivers d WHERE d.id = $3)`,
		lat, lng, id, models.DriverOffline, models.DriverAvailable)

	// the RETURNING subselect reads the statement's snapshot, i.e. the
	// pre-update status, so it reports whether this update flipped it.
	d := &models.Driver{}
	var wasOffline bool
	err = row.Scan(&d.ID, &d.Name, &d.Phone, &d.VehicleClass, &d.Status,
		&d.Lat, &d.Lng, &d.Rating, &d.CreatedAt, &d.UpdatedAt, &wasOffline)
	if err != nil {
		return nil, false, fmt.Errorf("drivers: update location: %w", err)
	}
	return d, wasOffline, nil
}
