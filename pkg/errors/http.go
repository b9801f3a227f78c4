package errors

import (
	"errors"
)

const genericMessage = "An unexpected error occurred"

var statusByType = map[string]int{
	ErrorTypeInvalidRequest:      StatusBadRequest,
	ErrorTypeNotFound:            StatusNotFound,
	ErrorTypeConflict:            StatusConflict,
	ErrorTypeTooManyRequests:     StatusTooManyRequests,
	ErrorTypeRequestTimeout:      StatusRequestTimeout,
	ErrorTypeServiceUnavailable:  StatusServiceUnavailable,
	ErrorTypeDatabaseError:       StatusInternalServerError,
	ErrorTypeInternalServerError: StatusInternalServerError,
}

// HTTPStatusCode maps an error to the status the API answers with. Anything
// that is not an AppError is a 500.
func HTTPStatusCode(err error) int {
	if status, ok := statusByType[GetErrorType(err)]; ok {
		return status
	}
	return StatusInternalServerError
}

// GetHumanReadableMessage returns the message safe to show to a client.
// Wrapped causes (driver errors, hostnames) never leave the service.
func GetHumanReadableMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return genericMessage
}
