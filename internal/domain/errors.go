package domain

import "errors"

var (
	ErrEntryNotFound          = errors.New("entry not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInvalidKey             = errors.New("invalid key")
)
