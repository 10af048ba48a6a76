// Package apperr defines the sentinel errors shared across the agent's
// components. Callers match them with errors.Is/errors.As rather than
// comparing strings.
package apperr

import "errors"

var (
	// ErrNotFound is returned by store and graph lookups that find nothing.
	ErrNotFound = errors.New("not found")

	// ErrInternal covers invariant violations and other defensive-assert
	// failures that should never happen in a correctly running agent.
	ErrInternal = errors.New("internal error")

	// ErrUnauthorized is returned when the API token is rejected (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation wraps a per-entity validation failure returned by the
	// remote service on push (HTTP 4xx). The entity stays dirty.
	ErrValidation = errors.New("validation error")

	// ErrTransientNetwork marks a failure classified as transient by
	// netx.IsTransient; callers should retry with backoff.
	ErrTransientNetwork = errors.New("transient network error")

	// ErrStore marks an I/O or constraint failure in the local database.
	ErrStore = errors.New("store error")

	// ErrLoggedOut is returned by mutating calls made while no session is
	// active.
	ErrLoggedOut = errors.New("not logged in")

	// ErrInvalidInput covers user-input errors caught at the facade boundary
	// (empty email/password, missing GUID, malformed duration string).
	ErrInvalidInput = errors.New("invalid input")
)
