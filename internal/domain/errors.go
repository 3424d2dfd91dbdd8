package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoData means a provider answered but reported no data for the key.
	ErrNoData = errors.New("no data")

	ErrValidation              = errors.New("validation failed")
	ErrUpstreamUnavailable     = errors.New("upstream unavailable")
	ErrInsufficientComparables = errors.New("insufficient comparables")
	ErrPersistence             = errors.New("persistence failed")
)
