package levelstore

import "errors"

// Sentinel kinds for level store errors.
var (
	ErrNotFound = errors.New("level not found")
	ErrPersist  = errors.New("persist levels failed")
)
