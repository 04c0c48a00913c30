package dispatcherr

import (
	"github.com/gin-gonic/gin"
	"github.com/ridecore/dispatch/pkg/common"
)

// Respond writes err as an HTTP response using the shared response envelope.
// A typed *AppError maps to its own status/code/message; anything else is
// reported as an opaque 500, since a service leaking an untyped error is a
// bug the handler shouldn't try to interpret.
func Respond(c *gin.Context, err error) {
	appErr, ok := As(err)
	if !ok {
		common.ErrorResponse(c, 500, "internal error")
		return
	}
	common.AppErrorResponse(c, &common.AppError{
		Code:      appErr.Status,
		ErrorCode: string(appErr.Code),
		Message:   appErr.Message,
		Err:       appErr.Err,
	})
}
