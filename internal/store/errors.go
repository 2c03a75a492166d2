// Package store defines the backend-agnostic storage contract for the
// storefront back office. This file centralizes the sentinel errors both
// backends return for predictable failure cases, so callers can branch with
// errors.Is and the HTTP layer can map them to stable status codes.
//
// Anything not covered by a sentinel is a storage fault (I/O, schema, driver)
// and propagates wrapped; the boundary layer must surface those only as a
// generic failure.
package store

import "errors"

var (
	// ErrNotFound indicates that the requested category, product, user, or
	// order does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned when required input is missing or malformed
	// (e.g., an empty username on registration, a negative price).
	ErrValidation = errors.New("invalid input")

	// ErrOutOfStock is returned by order placement when the product has no
	// remaining stock. The operation leaves no side effects.
	ErrOutOfStock = errors.New("product out of stock")

	// ErrDuplicateUsername is returned when adding a user whose username
	// already exists (compared case-insensitively).
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidCredentials is returned by Authenticate when the username is
	// unknown or the credential does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
