package trips

import (
	"github.com/gin-gonic/gin"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/pkg/common"
)

// Handler adapts Service to the /v1 trips HTTP surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// StartTrip handles POST /trips/{ride_id}/start.
func (h *Handler) StartTrip(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}
	trip, err := h.service.StartTrip(c.Request.Context(), rideID)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, trip)
}

// EndTrip handles POST /trips/{id}/end.
func (h *Handler) EndTrip(c *gin.Context) {
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}
	var req EndTripRequest
	if !common.BindJSON(c, &req) {
		return
	}
	trip, err := h.service.EndTrip(c.Request.Context(), tripID, req.DistanceMeters, req.DurationSeconds)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, trip)
}

// GetTrip handles GET /trips/{id}.
func (h *Handler) GetTrip(c *gin.Context) {
	tripID, ok := common.ParseUUIDParam(c, "id", "trip ID")
	if !ok {
		return
	}
	trip, err := h.service.GetTrip(c.Request.Context(), tripID)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, trip)
}
