// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrEmptyJournal      = errors.New("journal content is empty")
	ErrNoEntries         = errors.New("journal contains no dated entries")
	ErrMissingCredential = errors.New("missing api credential")
	ErrInvalidRecord     = errors.New("invalid stored record")
)
