package rides

import "github.com/ridecore/dispatch/internal/models"

// CreateRideRequest is the POST /rides request body.
type CreateRideRequest struct {
	RiderID       string              `json:"rider_id" binding:"required,uuid"`
	PickupLat     float64             `json:"pickup_lat" binding:"required"`
	PickupLng     float64             `json:"pickup_lng" binding:"required"`
	PickupAddress string              `json:"pickup_address"`
	DestLat       float64             `json:"dest_lat" binding:"required"`
	DestLng       float64             `json:"dest_lng" binding:"required"`
	DestAddress   string              `json:"dest_address"`
	VehicleClass  models.VehicleClass `json:"vehicle_type" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}

// AcceptOfferRequest is the POST /drivers/{id}/accept request body.
type AcceptOfferRequest struct {
	RideID string `json:"ride_id" binding:"required,uuid"`
	Accept bool   `json:"accept"`
}
