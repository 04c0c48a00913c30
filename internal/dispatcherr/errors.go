// Package dispatcherr is the dispatch core's typed error taxonomy. Services
// return these; orchestration layers (HTTP handlers) map them to a status
// code but never translate one kind into another.
package dispatcherr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error identifier, independent of HTTP status.
type Code string

const (
	CodeRideNotFound           Code = "RIDE_NOT_FOUND"
	CodeDriverNotFound         Code = "DRIVER_NOT_FOUND"
	CodeTripNotFound           Code = "TRIP_NOT_FOUND"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeDriverUnavailable      Code = "DRIVER_UNAVAILABLE"
	CodeDuplicateRequest       Code = "DUPLICATE_REQUEST"
	CodePaymentError           Code = "PAYMENT_ERROR"
	CodeRateLimitExceeded      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal               Code = "INTERNAL_ERROR"
)

// AppError is a typed error carrying the HTTP status it maps to at the
// boundary, plus a machine-readable code and the wrapped cause.
type AppError struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newErr(code Code, status int, message string, cause error) *AppError {
	return &AppError{Code: code, Status: status, Message: message, Err: cause}
}

func RideNotFound(cause error) *AppError {
	return newErr(CodeRideNotFound, http.StatusNotFound, "ride not found", cause)
}

func DriverNotFound(cause error) *AppError {
	return newErr(CodeDriverNotFound, http.StatusNotFound, "driver not found", cause)
}

func TripNotFound(cause error) *AppError {
	return newErr(CodeTripNotFound, http.StatusNotFound, "trip not found", cause)
}

func InvalidStateTransition(message string) *AppError {
	return newErr(CodeInvalidStateTransition, http.StatusConflict, message, nil)
}

func DriverUnavailable(message string) *AppError {
	return newErr(CodeDriverUnavailable, http.StatusConflict, message, nil)
}

func DuplicateRequest(message string) *AppError {
	return newErr(CodeDuplicateRequest, http.StatusConflict, message, nil)
}

func PaymentError(message string, cause error) *AppError {
	return newErr(CodePaymentError, http.StatusPaymentRequired, message, cause)
}

func RateLimitExceeded(message string) *AppError {
	return newErr(CodeRateLimitExceeded, http.StatusTooManyRequests, message, nil)
}

func Internal(message string, cause error) *AppError {
	return newErr(CodeInternal, http.StatusInternalServerError, message, cause)
}

// As extracts an *AppError from err, if any wraps one.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusFor returns the HTTP status for err, defaulting to 500 for anything
// that isn't a typed AppError.
func StatusFor(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
