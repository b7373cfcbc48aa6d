package handlers

import (
	"errors"
	"net/http"

	"travel-booking/internal/status"

	"github.com/pocketbase/pocketbase/apis"
)

// apiError maps the core error taxonomy onto HTTP responses.
// Validation and capacity rejections are client-resolvable; transition
// conflicts surface as 409 so callers can refetch and retry.
func apiError(err error) error {
	if ve, ok := status.AsValidationError(err); ok {
		return apis.NewApiError(http.StatusBadRequest, "Validation failed", map[string]any{
			"violations": ve.Violations,
		})
	}

	switch {
	case errors.Is(err, status.ErrCapacityExceeded):
		return apis.NewApiError(http.StatusConflict, "Not enough capacity left", nil)
	case errors.Is(err, status.ErrInvalidTransition),
		errors.Is(err, status.ErrInvalidPaymentTransition):
		return apis.NewApiError(http.StatusConflict, err.Error(), nil)
	case errors.Is(err, status.ErrConflict):
		return apis.NewApiError(http.StatusConflict, "Booking was updated concurrently, retry", nil)
	case errors.Is(err, status.ErrInvalidArgument):
		return apis.NewBadRequestError("Invalid argument", err)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Record not found", err)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Request failed", nil)
	}
}
