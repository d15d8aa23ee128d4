package handler

import (
	"errors"
	"net/http"

	"backend/internal/service"
)

// statusFor maps the service error taxonomy to HTTP codes. Anything outside
// the taxonomy is a persistence failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvariant):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
