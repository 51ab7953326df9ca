package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Core taxonomy. Every failure reported to a client maps to exactly one of
// these sentinels; anything unexpected is wrapped as ErrTransient so
// internals never leak to the wire.
var (
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrNotFound             = fmt.Errorf("not found")
	ErrForbidden            = fmt.Errorf("forbidden")
	ErrValidation           = fmt.Errorf("validation failed")
	ErrTransient            = fmt.Errorf("temporarily unavailable")
)

// Credential-store sentinels.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// MapToStatus converts a service error into the HTTP status code exposed by
// the request/response surface.
func MapToStatus(err error) int {
	switch {
	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrUserAlreadyExists):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage is the error string placed in acknowledgments and HTTP
// bodies. Only sentinel text crosses the boundary; wrapped causes stay in
// server logs.
func ClientMessage(err error) string {
	for _, sentinel := range []error{
		ErrAuthenticationFailed,
		ErrNotFound,
		ErrForbidden,
		ErrValidation,
		ErrUserAlreadyExists,
		ErrInvalidCredentials,
		ErrInvalidPassword,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrTransient.Error()
}
