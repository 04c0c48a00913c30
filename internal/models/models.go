// Package models holds the persisted entity shapes shared across the
// dispatch core: drivers, riders, ride requests, offers, trips and payments.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VehicleClass is one of the fare table's vehicle tiers.
type VehicleClass string

const (
	VehicleAuto  VehicleClass = "auto"
	VehicleMini  VehicleClass = "mini"
	VehicleSedan VehicleClass = "sedan"
	VehicleSUV   VehicleClass = "suv"
)

// PaymentMethod is how the rider intends to settle the trip.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

// DriverStatus tracks a driver's availability for matching.
type DriverStatus string

const (
	DriverOffline   DriverStatus = "offline"
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOnTrip    DriverStatus = "on_trip"
)

// RideStatus is the ride request lifecycle state.
type RideStatus string

const (
	RidePending        RideStatus = "pending"
	RideMatching       RideStatus = "matching"
	RideOffered        RideStatus = "offered"
	RideAccepted       RideStatus = "accepted"
	RideDriverEnRoute  RideStatus = "driver_en_route"
	RideArrived        RideStatus = "arrived"
	RideInTrip         RideStatus = "in_trip"
	RideCompleted      RideStatus = "completed"
	RideCancelled      RideStatus = "cancelled"
	RideNoDrivers      RideStatus = "no_drivers"
)

// OfferStatus is the ride-offer lifecycle state.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
	OfferExpired  OfferStatus = "expired"
)

// TripStatus is the trip lifecycle state.
type TripStatus string

const (
	TripStarted    TripStatus = "started"
	TripInProgress TripStatus = "in_progress"
	TripPaused     TripStatus = "paused"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// PaymentStatus is the payment lifecycle state.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
)

// Driver is a vehicle operator available for matching.
type Driver struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Phone        string       `json:"phone" db:"phone"`
	VehicleClass VehicleClass `json:"vehicle_class" db:"vehicle_class"`
	Status       DriverStatus `json:"status" db:"status"`
	Lat          float64      `json:"lat" db:"lat"`
	Lng          float64      `json:"lng" db:"lng"`
	Rating       float64      `json:"rating" db:"rating"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Rider is the minimal counterpart identity a ride/payment row references.
// The dispatch core treats rider_id as an opaque foreign key; no rider
// management feature (profile, verification) is implemented here.
type Rider struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Ride is a rider's trip request as it moves through the dispatch lifecycle.
type Ride struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	RiderID          uuid.UUID       `json:"rider_id" db:"rider_id"`
	PickupLat        float64         `json:"pickup_lat" db:"pickup_lat"`
	PickupLng        float64         `json:"pickup_lng" db:"pickup_lng"`
	PickupAddress    string          `json:"pickup_address,omitempty" db:"pickup_address"`
	DestLat          float64         `json:"dest_lat" db:"dest_lat"`
	DestLng          float64         `json:"dest_lng" db:"dest_lng"`
	DestAddress      string          `json:"dest_address,omitempty" db:"dest_address"`
	VehicleClass     VehicleClass    `json:"vehicle_class" db:"vehicle_class"`
	PaymentMethod    PaymentMethod   `json:"payment_method" db:"payment_method"`
	SurgeMultiplier  decimal.Decimal `json:"surge_multiplier" db:"surge_multiplier"`
	EstimatedFare    decimal.Decimal `json:"estimated_fare" db:"estimated_fare"`
	Status           RideStatus      `json:"status" db:"status"`
	MatchedDriverID  *uuid.UUID      `json:"matched_driver_id,omitempty" db:"matched_driver_id"`
	OffersMade       int             `json:"offers_made" db:"offers_made"`
	MaxOffers        int             `json:"max_offers" db:"max_offers"`
	IdempotencyKey   *string         `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// RideOffer is a single driver's proposal for a ride, with a hard deadline.
type RideOffer struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	RideID    uuid.UUID   `json:"ride_id" db:"ride_id"`
	DriverID  uuid.UUID   `json:"driver_id" db:"driver_id"`
	Status    OfferStatus `json:"status" db:"status"`
	ExpiresAt time.Time   `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// FareBreakdown is the deterministic, exact-decimal fare computation result.
type FareBreakdown struct {
	BaseFare        decimal.Decimal `json:"base_fare"`
	DistanceFare    decimal.Decimal `json:"distance_fare"`
	TimeFare        decimal.Decimal `json:"time_fare"`
	SurgeMultiplier decimal.Decimal `json:"surge_multiplier"`
	TotalFare       decimal.Decimal `json:"total_fare"`
}

// Trip is the driving leg of an accepted ride.
type Trip struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	RideID          uuid.UUID       `json:"ride_id" db:"ride_id"`
	DriverID        uuid.UUID       `json:"driver_id" db:"driver_id"`
	RiderID         uuid.UUID       `json:"rider_id" db:"rider_id"`
	Status          TripStatus      `json:"status" db:"status"`
	StartedAt       time.Time       `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	DistanceMeters  int             `json:"distance_m" db:"distance_m"`
	DurationSeconds int             `json:"duration_s" db:"duration_s"`
	BaseFare        decimal.Decimal `json:"base_fare" db:"base_fare"`
	DistanceFare    decimal.Decimal `json:"distance_fare" db:"distance_fare"`
	TimeFare        decimal.Decimal `json:"time_fare" db:"time_fare"`
	SurgeMultiplier decimal.Decimal `json:"surge_multiplier" db:"surge_multiplier"`
	TotalFare       decimal.Decimal `json:"total_fare" db:"total_fare"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Payment is the settlement record for a completed trip.
type Payment struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	TripID          uuid.UUID       `json:"trip_id" db:"trip_id"`
	RiderID         uuid.UUID       `json:"rider_id" db:"rider_id"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	Status          PaymentStatus   `json:"status" db:"status"`
	IdempotencyKey  *string         `json:"idempotency_key,omitempty" db:"idempotency_key"`
	PSPTransactionID *string        `json:"psp_transaction_id,omitempty" db:"psp_transaction_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IdempotencyRecord certifies that a given (key, endpoint) pair has already
// produced a response, so a retried request can be rejected or replayed.
type IdempotencyRecord struct {
	Key          string    `json:"key" db:"key"`
	Endpoint     string    `json:"endpoint" db:"endpoint"`
	ResponseCode int       `json:"response_code" db:"response_code"`
	ResponseBody []byte    `json:"response_body" db:"response_body"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
}
