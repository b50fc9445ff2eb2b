package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")
	// ErrConflict is returned when a guarded status transition loses against
	// an already-applied one, e.g. completing a job that is already terminal.
	ErrConflict = errors.New("conflicting state transition")
)
