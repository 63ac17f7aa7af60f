package models

import "errors"

// Application-wide standard errors
var (
	ErrInvalidInput = errors.New("invalid input data")
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")

	// Persistence that is disabled by configuration.
	ErrStoreDisabled = errors.New("store is not configured")
)
