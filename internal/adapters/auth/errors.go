package auth

import "errors"

// Sentinel errors for the auth adapter.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrNotConfigured      = errors.New("admin login is not configured")
)
