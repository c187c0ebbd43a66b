package storage

import "errors"

var (
	// ErrUserNotFound is returned when no user record matches a lookup
	ErrUserNotFound = errors.New("user not found")
)
