package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrAlreadyCancelled = errors.New("reservation is already cancelled")

	ErrLockHeld = errors.New("reservation lock is held by another request")
)
