package rides

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/pkg/common"
	"github.com/ridecore/dispatch/pkg/validation"
)

// Handler adapts Service to the /v1 rides and driver-accept HTTP surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateRide handles POST /rides.
func (h *Handler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	riderID, err := uuid.Parse(req.RiderID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid rider_id")
		return
	}

	if err := validation.ValidateCoordinates(req.PickupLat, req.PickupLng); err != nil {
		common.ErrorResponse(c, 400, "invalid pickup coordinates: "+err.Error())
		return
	}
	if err := validation.ValidateCoordinates(req.DestLat, req.DestLng); err != nil {
		common.ErrorResponse(c, 400, "invalid destination coordinates: "+err.Error())
		return
	}

	var idempotencyKey *string
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		idempotencyKey = &key
	}

	ride, err := h.service.CreateRide(c.Request.Context(), CreateRequest{
		RiderID:        riderID,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		PickupAddress:  req.PickupAddress,
		DestLat:        req.DestLat,
		DestLng:        req.DestLng,
		DestAddress:    req.DestAddress,
		VehicleClass:   req.VehicleClass,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.CreatedResponse(c, ride)
}

// GetRide handles GET /rides/{id}.
func (h *Handler) GetRide(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}
	ride, err := h.service.GetRide(c.Request.Context(), id)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, ride)
}

// ListRides handles GET /rides.
func (h *Handler) ListRides(c *gin.Context) {
	rides, err := h.service.ListRides(c.Request.Context())
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, rides)
}

// CancelRide handles POST /rides/{id}/cancel.
func (h *Handler) CancelRide(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}
	ride, err := h.service.CancelRide(c.Request.Context(), id)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, ride)
}

// AcceptOffer handles POST /drivers/{id}/accept.
func (h *Handler) AcceptOffer(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "id", "driver ID")
	if !ok {
		return
	}

	var req AcceptOfferRequest
	if !common.BindJSON(c, &req) {
		return
	}
	rideID, err := uuid.Parse(req.RideID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid ride_id")
		return
	}

	ride, err := h.service.AcceptOffer(c.Request.Context(), rideID, driverID, req.Accept)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, ride)
}
