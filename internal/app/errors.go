package service

import "errors"

// Sentinel errors returned by the Service. Callers use errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrPersist      = errors.New("persistence failure")
	ErrDuplicate    = errors.New("duplicate request")
)
