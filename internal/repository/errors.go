package repository

import "errors"

var (
	ErrNotFound = errors.New("device not found")

	// ErrConflict is returned when a concurrent writer updated the document first.
	ErrConflict = errors.New("device document update conflict")
)
