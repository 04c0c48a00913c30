// Package payments settles a completed trip's fare, either instantly for
// cash or via a mock payment-service-provider charge for card/wallet.
package payments

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/internal/idempotency"
	"github.com/ridecore/dispatch/internal/models"
)

const idempotencyEndpoint = "payments"

// repoPort is the database access ProcessPayment needs.
type repoPort interface {
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus, pspTransactionID *string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// tripLookup is the one piece of trip state ProcessPayment needs: that it
// exists, is completed, and its fare and rider.
type tripLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
}

// idempotencyStore is the C4 dedup surface, checked before charging and
// written after a successful charge.
type idempotencyStore interface {
	Check(ctx context.Context, key, endpoint string) (*idempotency.Record, error)
	Record(ctx context.Context, key, endpoint string, responseCode int, responseBody interface{}) error
}

// Service implements process_payment.
type Service struct {
	repo  repoPort
	trips tripLookup
	idemp idempotencyStore
	psp   pspClient
}

func NewService(repo repoPort, trips tripLookup, idemp idempotencyStore, psp pspClient) *Service {
	return &Service{repo: repo, trips: trips, idemp: idemp, psp: psp}
}

// ProcessPayment settles tripID's fare via method, deduplicating on
// idempotencyKey when present.
func (s *Service) ProcessPayment(ctx context.Context, tripID uuid.UUID, method models.PaymentMethod, idempotencyKey *string) (*models.Payment, error) {
	if idempotencyKey != nil {
		record, err := s.idemp.Check(ctx, *idempotencyKey, idempotencyEndpoint)
		if err != nil {
			return nil, dispatcherr.Internal("check payment idempotency", err)
		}
		if record != nil {
			return nil, dispatcherr.DuplicateRequest("payment already processed for this idempotency key")
		}
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, dispatcherr.TripNotFound(err)
	}
	if trip.Status != models.TripCompleted {
		return nil, dispatcherr.PaymentError("trip is not completed", nil)
	}

	payment := &models.Payment{
		TripID:         tripID,
		RiderID:        trip.RiderID,
		Amount:         trip.TotalFare,
		PaymentMethod:  method,
		Status:         models.PaymentPending,
		IdempotencyKey: idempotencyKey,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, ErrPaymentInFlight) {
			return nil, dispatcherr.DuplicateRequest("a payment is already in flight for this trip")
		}
		return nil, dispatcherr.Internal("create payment", err)
	}

	if method == models.PaymentCash {
		if err := s.repo.UpdateStatus(ctx, payment.ID, models.PaymentSucceeded, nil); err != nil {
			return nil, dispatcherr.Internal("settle cash payment", err)
		}
		payment.Status = models.PaymentSucceeded
	} else {
		if err := s.repo.UpdateStatus(ctx, payment.ID, models.PaymentProcessing, nil); err != nil {
			return nil, dispatcherr.Internal("mark payment processing", err)
		}
		amountCents := payment.Amount.Shift(2).IntPart()
		intent, err := s.psp.Charge(ctx, amountCents, "inr")
		if err != nil {
			if failErr := s.repo.UpdateStatus(ctx, payment.ID, models.PaymentFailed, nil); failErr != nil {
				return nil, dispatcherr.Internal("mark payment failed", failErr)
			}
			return nil, dispatcherr.PaymentError("psp charge failed", err)
		}
		if err := s.repo.UpdateStatus(ctx, payment.ID, models.PaymentSucceeded, &intent.ID); err != nil {
			return nil, dispatcherr.Internal("settle psp payment", err)
		}
		payment.Status = models.PaymentSucceeded
		payment.PSPTransactionID = &intent.ID
	}

	if idempotencyKey != nil {
		body, err := json.Marshal(payment)
		if err != nil {
			return nil, dispatcherr.Internal("marshal payment for idempotency record", err)
		}
		if err := s.idemp.Record(ctx, *idempotencyKey, idempotencyEndpoint, 201, json.RawMessage(body)); err != nil {
			return nil, dispatcherr.Internal("record payment idempotency", err)
		}
	}

	return payment, nil
}
