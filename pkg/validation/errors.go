package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError collects per-field validation failures for one request.
type ValidationError struct {
	Errors map[string]string
}

// NewValidationError converts validator.ValidationErrors into the
// field-to-message map handlers surface to clients.
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	ve := &ValidationError{Errors: make(map[string]string, len(errs))}
	for _, fieldErr := range errs {
		field := strings.ToLower(fieldErr.Field())
		ve.Errors[field] = messageFor(fieldErr)
	}
	return ve
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "latitude":
		return "must be a valid latitude (-90 to 90)"
	case "longitude":
		return "must be a valid longitude (-180 to 180)"
	case "phone":
		return "must be a valid E.164 phone number"
	case "uuid":
		return "must be a valid UUID"
	case "vehicle_class":
		return "must be one of: auto, mini, sedan, suv"
	case "payment_method":
		return "must be one of: cash, card, wallet"
	case "ride_status":
		return "must be a valid ride status"
	case "trip_status":
		return "must be a valid trip status"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AddError records a failure message for field.
func (e *ValidationError) AddError(field, message string) {
	if e.Errors == nil {
		e.Errors = make(map[string]string)
	}
	e.Errors[field] = message
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// GetFieldError returns the message recorded for field, or "".
func (e *ValidationError) GetFieldError(field string) string {
	return e.Errors[field]
}
