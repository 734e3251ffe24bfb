package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness conflict on caller-supplied data.
	ErrConflict = errors.New("conflict")
)
