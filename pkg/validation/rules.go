package validation

import "time"

// Common validation rules and request structs

// RideRequestRules carries the validation rules for a ride creation request.
type RideRequestRules struct {
	PickupLat     float64 `json:"pickup_lat" validate:"required,latitude"`
	PickupLng     float64 `json:"pickup_lng" validate:"required,longitude"`
	PickupAddress string  `json:"pickup_address" validate:"omitempty,max=500"`
	DestLat       float64 `json:"dest_lat" validate:"required,latitude"`
	DestLng       float64 `json:"dest_lng" validate:"required,longitude"`
	DestAddress   string  `json:"dest_address" validate:"omitempty,max=500"`
	VehicleType   string  `json:"vehicle_type" validate:"required,vehicle_class"`
	PaymentMethod string  `json:"payment_method" validate:"required,payment_method"`
}

// LocationUpdateRules carries the validation rules for a driver location ping.
type LocationUpdateRules struct {
	Lat float64 `json:"lat" validate:"required,latitude"`
	Lng float64 `json:"lng" validate:"required,longitude"`
}

// PaymentRequestRules carries the validation rules for a payment request.
type PaymentRequestRules struct {
	TripID        string `json:"trip_id" validate:"required,uuid"`
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
}

// OfferResponseRules carries the validation rules for a driver's answer to
// a pending offer.
type OfferResponseRules struct {
	RideID string `json:"ride_id" validate:"required,uuid"`
	Accept bool   `json:"accept"`
}

// RatingRules carries the validation rules for a post-trip driver rating.
type RatingRules struct {
	RideID   string `json:"ride_id" validate:"required,uuid"`
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Feedback string `json:"feedback" validate:"omitempty,max=1000"`
}

// PaginationRules carries common pagination parameters.
type PaginationRules struct {
	Limit   int    `json:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset  int    `json:"offset" validate:"omitempty,gte=0"`
	SortBy  string `json:"sort_by" validate:"omitempty,alpha"`
	SortDir string `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

// DateRangeRules carries a date range filter.
type DateRangeRules struct {
	StartDate time.Time `json:"start_date" validate:"omitempty"`
	EndDate   time.Time `json:"end_date" validate:"omitempty"`
}

// ValidateRideRequest validates a ride request and checks business rules
func ValidateRideRequest(req *RideRequestRules) error {
	// First, validate struct tags
	if err := ValidateStruct(req); err != nil {
		return err
	}

	// Additional business logic validation
	validationErr := &ValidationError{Errors: make(map[string]string)}

	// Check that pickup and destination are not the same point
	if req.PickupLat == req.DestLat && req.PickupLng == req.DestLng {
		validationErr.AddError("location", "Pickup and destination locations cannot be the same")
	}

	if validationErr.HasErrors() {
		return validationErr
	}

	return nil
}

// ValidateDateRange validates that end date is after start date
func ValidateDateRange(start, end time.Time) error {
	if end.Before(start) {
		return &ValidationError{
			Errors: map[string]string{
				"date_range": "End date must be after start date",
			},
		}
	}
	return nil
}
