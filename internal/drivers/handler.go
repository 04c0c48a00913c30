package drivers

import (
	"github.com/gin-gonic/gin"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/pkg/common"
	"github.com/ridecore/dispatch/pkg/validation"
)

// Handler adapts Service to the /v1/drivers HTTP surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// UpdateLocation handles POST /drivers/{id}/location.
func (h *Handler) UpdateLocation(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "driver ID")
	if !ok {
		return
	}
	var req UpdateLocationRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateCoordinates(req.Lat, req.Lng); err != nil {
		common.ErrorResponse(c, 400, "invalid coordinates: "+err.Error())
		return
	}

	driver, err := h.service.UpdateLocation(c.Request.Context(), id, req.Lat, req.Lng)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, driver)
}

// GetDriver handles GET /drivers/{id}.
func (h *Handler) GetDriver(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "driver ID")
	if !ok {
		return
	}
	driver, err := h.service.GetDriver(c.Request.Context(), id)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, driver)
}

// ListDrivers handles GET /drivers.
func (h *Handler) ListDrivers(c *gin.Context) {
	drivers, err := h.service.ListDrivers(c.Request.Context())
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.SuccessResponse(c, drivers)
}
