package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrMissingPath   = errors.New("storage path is required")
	ErrCorrupt       = errors.New("stored levels are unreadable")
)
