package service

import "net/http"

// AuthError is a client-facing failure with a stable code and HTTP status.
// Anything else bubbling out of the service is treated as a server error.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	return e.Code + ": " + e.Description
}

func newAuthError(code, description string, status int) *AuthError {
	return &AuthError{Code: code, Description: description, Status: status}
}

func errInvalidRequest(description string) *AuthError {
	return newAuthError("invalid_request", description, http.StatusBadRequest)
}

func errUnauthorized(description string) *AuthError {
	return newAuthError("unauthorized", description, http.StatusUnauthorized)
}

func errConflict(description string) *AuthError {
	return newAuthError("conflict", description, http.StatusConflict)
}
