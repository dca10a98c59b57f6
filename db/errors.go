package db

import "errors"

// Typed store errors. Callers match these with errors.Is; the raw
// driver-level text is only ever logged, never compared against.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrMissingFields    = errors.New("missing required fields")
	ErrConstraintUnique = errors.New("unique constraint violation")
	ErrNoRefreshToken   = errors.New("tenant has no refresh token")
	ErrStateExpired     = errors.New("oauth state expired or unknown")
)
