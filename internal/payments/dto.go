package payments

import "github.com/ridecore/dispatch/internal/models"

// ProcessPaymentRequest is the POST /payments request body.
type ProcessPaymentRequest struct {
	TripID        string               `json:"trip_id" binding:"required,uuid"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}
