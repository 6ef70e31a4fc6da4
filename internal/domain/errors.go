package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced order or identity does not
	// exist upstream. It is a normal negative, not a failure.
	ErrNotFound = errors.New("resource not found")
	// ErrUpstreamUnavailable signals a network or backend failure on an
	// outbound call. Retryable by the caller.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrConflict is returned when identity creation raced another
	// provisioning attempt for the same email. The provisioner absorbs it
	// into OutcomeAlreadyExists rather than surfacing it.
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)
