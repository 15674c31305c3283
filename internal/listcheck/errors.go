package listcheck

import "errors"

var (
	// ErrUnexpectedStatus is returned when the service answers with a status the check did not expect.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrViolation is returned when the service breaks a list guarantee.
	ErrViolation = errors.New("list guarantee violated")
	// ErrUnsupportedFormat is returned for import files that are neither JSON nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported import format")
)
