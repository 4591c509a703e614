// Package auth establishes who is calling and what they may do: signed
// session tokens, login, the coarse page gate, per-request identity
// resolution and capability checks.
package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrMissingToken     = errors.New("missing session token")
	ErrMalformedToken   = errors.New("malformed session token")
	ErrInvalidSignature = errors.New("session token signature mismatch")
	ErrExpiredToken     = errors.New("session token expired")
	ErrSubjectNotFound  = errors.New("session subject no longer exists")

	ErrInsufficientRole    = errors.New("admin role required")
	ErrMissingCapability   = errors.New("capability not granted")
	ErrSelfDeleteForbidden = errors.New("cannot delete own account")
)

// IsAuthenticationError reports whether err means the caller could not be
// identified. Callers must answer all of these with the same 401.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrSubjectNotFound)
}

// IsAuthorizationError reports whether err is a role or capability denial.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrInsufficientRole) || errors.Is(err, ErrMissingCapability)
}
