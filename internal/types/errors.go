package types

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrImageProcessing     = errors.New("image processing failed")
	ErrParsingFailed       = errors.New("failed to parse analysis response")
	ErrUnauthorized        = errors.New("credential rejected")
	ErrStorage             = errors.New("storage unavailable")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrRoomBusy            = errors.New("room has an operation in flight")
	ErrOverrideUnavailable = errors.New("manual override not available")
)

// ServiceError is a failed call to an external service that answered with a
// status code, or did not answer at all (StatusCode 0).
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
}

// NewServiceError builds a ServiceError, promoting 401/403 answers to
// ErrUnauthorized so callers can branch on a single sentinel.
func NewServiceError(service string, statusCode int, message string) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	}
	return &ServiceError{Service: service, StatusCode: statusCode, Message: message}
}

// HTTPStatus maps an error from the room pipeline onto the status code the
// API answers with.
func HTTPStatus(err error) int {
	var serviceErr *ServiceError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomBusy), errors.Is(err, ErrOverrideUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrMissingCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrImageProcessing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrParsingFailed), errors.As(err, &serviceErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
