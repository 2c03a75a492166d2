// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The codes give clients a stable, machine-readable taxonomy that
// supplements the human-readable messages; handlers pick the most specific
// one and pass it to fail() with the matching status.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeOutOfStock       = "out_of_stock"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
