package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridecore/dispatch/internal/models"
)

// Repository is the payment service's Postgres access.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const paymentColumns = `id, trip_id, rider_id, amount, payment_method, status,
	idempotency_key, psp_transaction_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(&p.ID, &p.TripID, &p.RiderID, &p.Amount, &p.PaymentMethod, &p.Status,
		&p.IdempotencyKey, &p.PSPTransactionID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ErrPaymentInFlight signals a processing/succeeded payment already exists
// for this trip.
var ErrPaymentInFlight = errors.New("payments: payment already in flight for trip")

// Create inserts a pending payment, rejecting if one already exists for
// the trip in status processing or succeeded.
func (r *Repository) Create(ctx context.Context, payment *models.Payment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("payments: begin create tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM payments WHERE trip_id = $1 AND status = ANY($2)
	`, payment.TripID, []models.PaymentStatus{models.PaymentProcessing, models.PaymentSucceeded}).Scan(&existing)
	if err != nil {
		return fmt.Errorf("payments: check in-flight: %w", err)
	}
	if existing > 0 {
		return ErrPaymentInFlight
	}

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (id, trip_id, rider_id, amount, payment_method, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, payment.ID, payment.TripID, payment.RiderID, payment.Amount, payment.PaymentMethod,
		payment.Status, payment.IdempotencyKey).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("payments: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("payments: commit create: %w", err)
	}
	return nil
}

// UpdateStatus stores the final status and PSP transaction id.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, pspTransactionID *string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments SET status = $1, psp_transaction_id = $2, updated_at = now() WHERE id = $3
	`, status, pspTransactionID, id)
	if err != nil {
		return fmt.Errorf("payments: update status: %w", err)
	}
	return nil
}

// GetByID loads a payment by id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("payments: get: %w", err)
	}
	return p, nil
}
