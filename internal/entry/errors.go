package entry

import "errors"

// Domain errors for the entry package.
//
//	if errors.Is(err, entry.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an entry ID does not exist.
	ErrNotFound = errors.New("entry: not found")

	// ErrExists is returned when creating an entry whose ID or
	// (domain, unique id) pair is already taken.
	ErrExists = errors.New("entry: already exists")

	// ErrInvalid is returned when an entry lacks a domain or title.
	ErrInvalid = errors.New("entry: invalid")
)
