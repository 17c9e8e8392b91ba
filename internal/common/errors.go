// Package common defines shared constants and sentinel errors used across
// the Quipflip client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Transport-level errors.
	ErrUnavailable = errors.New("server unavailable")
	ErrRateLimited = errors.New("rate limited")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")

	// Gameplay state errors.
	ErrConflict      = errors.New("state conflict")
	ErrRoundNotFound = errors.New("round not found")
	ErrValidation    = errors.New("validation error")

	// Local persistence errors.
	ErrNotFound = errors.New("not found")
)
