package payments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ridecore/dispatch/internal/dispatcherr"
	"github.com/ridecore/dispatch/pkg/common"
)

// Handler adapts Service to the POST /v1/payments HTTP surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ProcessPayment handles POST /payments.
func (h *Handler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if !common.BindJSON(c, &req) {
		return
	}
	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		common.ErrorResponse(c, 400, "invalid trip_id")
		return
	}

	var idempotencyKey *string
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		idempotencyKey = &key
	}

	payment, err := h.service.ProcessPayment(c.Request.Context(), tripID, req.PaymentMethod, idempotencyKey)
	if err != nil {
		dispatcherr.Respond(c, err)
		return
	}
	common.CreatedResponse(c, payment)
}
