package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("lap not found")
	ErrInvalidLimit  = errors.New("invalid list limit")
	ErrInvalidLap    = errors.New("lap prediction without lap id")
	ErrUnknownDriver = errors.New("unknown store driver")
)
