// Package domainerrors defines the typed error vocabulary shared by all
// docucol services. Handlers translate these into HTTP statuses; message
// consumers use the codes to decide between an error-topic publish and a
// dead-letter route.
package domainerrors

import "net/http"

// Code identifies a class of domain failure.
type Code string

const (
	CodeBadRequest      Code = "bad_request"
	CodeNotFound        Code = "not_found"
	CodeUnauthorized    Code = "unauthorized"
	CodeConflict        Code = "conflict"
	CodeTooManyRequests Code = "too_many_requests"
	CodeUnavailable     Code = "unavailable"
	CodeInternal        Code = "internal_error"
)

// DomainError carries a machine-readable code and a human description.
// The description is only exposed to clients for non-internal codes.
type DomainError struct {
	Code        Code
	Description string
}

func (e DomainError) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// New builds a DomainError with the given code and description.
func New(code Code, description string) DomainError {
	return DomainError{Code: code, Description: description}
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
