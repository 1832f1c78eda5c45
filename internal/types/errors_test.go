package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServiceError(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		unauthorized bool
	}{
		{name: "unauthorized", statusCode: http.StatusUnauthorized, unauthorized: true},
		{name: "forbidden", statusCode: http.StatusForbidden, unauthorized: true},
		{name: "server error", statusCode: http.StatusInternalServerError},
		{name: "transport failure", statusCode: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewServiceError("gemini", tt.statusCode, "boom")

			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))

			var serviceErr *ServiceError
			if tt.unauthorized {
				assert.False(t, errors.As(err, &serviceErr))
				return
			}
			assert.True(t, errors.As(err, &serviceErr))
			assert.Equal(t, tt.statusCode, serviceErr.StatusCode)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation", err: fmt.Errorf("%w: name", ErrValidation), want: http.StatusBadRequest},
		{name: "missing credential", err: ErrMissingCredential, want: http.StatusPreconditionFailed},
		{name: "parsing", err: ErrParsingFailed, want: http.StatusBadGateway},
		{name: "service", err: &ServiceError{StatusCode: 500}, want: http.StatusBadGateway},
		{name: "unauthorized", err: ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "busy", err: ErrRoomBusy, want: http.StatusConflict},
		{name: "override", err: ErrOverrideUnavailable, want: http.StatusConflict},
		{name: "not found", err: ErrNotFound, want: http.StatusNotFound},
		{name: "image", err: ErrImageProcessing, want: http.StatusUnprocessableEntity},
		{name: "storage", err: ErrStorage, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
