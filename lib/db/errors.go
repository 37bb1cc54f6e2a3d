package db

import "errors"

// Returned by every DataStore so callers can match with errors.Is.
var (
	ErrPadNotFound      = errors.New("pad not found")
	ErrRevisionNotFound = errors.New("pad revision not found")
)
