package auth

import (
	"errors"
	"net/http"

	fbauth "firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
)

// ErrNotFound is returned when no identity account or user record exists for
// the given uid or email.
var ErrNotFound = errors.New("user not found")

// Normalized provider error classes. Classify buckets SDK errors into these
// so StatusForCode stays a pure lookup.
const (
	ErrCodeEmailExists   = "email_already_exists"
	ErrCodeUserNotFound  = "user_not_found"
	ErrCodeInvalidInput  = "invalid_argument"
	ErrCodeConflict      = "already_exists"
	ErrCodeQuotaExceeded = "quota_exceeded"
	ErrCodeUnavailable   = "service_unavailable"
	ErrCodeTimeout       = "deadline_exceeded"
	ErrCodeUnknown       = "provider_error"
)

var errStatus = map[string]int{
	ErrCodeEmailExists:   http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeUserNotFound:  http.StatusNotFound,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeQuotaExceeded: http.StatusTooManyRequests,
	ErrCodeUnavailable:   http.StatusServiceUnavailable,
	ErrCodeTimeout:       http.StatusGatewayTimeout,
}

// StatusForCode maps a normalized error class to its HTTP status. Unmapped
// classes collapse to 500.
func StatusForCode(code string) int {
	if status, ok := errStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Classify buckets a provider error into one of the classes above.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ErrCodeUserNotFound
	case fbauth.IsEmailAlreadyExists(err):
		return ErrCodeEmailExists
	case fbauth.IsUserNotFound(err):
		return ErrCodeUserNotFound
	case errorutils.IsNotFound(err):
		return ErrCodeUserNotFound
	case errorutils.IsAlreadyExists(err):
		return ErrCodeConflict
	case errorutils.IsInvalidArgument(err):
		return ErrCodeInvalidInput
	case errorutils.IsResourceExhausted(err):
		return ErrCodeQuotaExceeded
	case errorutils.IsUnavailable(err):
		return ErrCodeUnavailable
	case errorutils.IsDeadlineExceeded(err):
		return ErrCodeTimeout
	default:
		return ErrCodeUnknown
	}
}

// HTTPError resolves a provider error to the status/code pair handlers
// return to clients.
func HTTPError(err error) (int, string) {
	code := Classify(err)
	return StatusForCode(code), code
}
