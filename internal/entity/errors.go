package entity

import "errors"

var (
	// ErrMissingField is returned by a projection when the snapshot lacks
	// the field it reads. The entity renders as unknown.
	ErrMissingField = errors.New("entity: missing field")

	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("entity: not found")

	// ErrUnknownService is returned when an entity does not support a service.
	ErrUnknownService = errors.New("entity: unknown service")

	// ErrDuplicate is returned when a unique id is registered twice for a domain.
	ErrDuplicate = errors.New("entity: duplicate unique id")

	// ErrUnavailable is returned when a service is called on an unavailable entity.
	ErrUnavailable = errors.New("entity: unavailable")

	// ErrInvalidParams is wrapped by integration errors for service
	// parameters the vendor would reject.
	ErrInvalidParams = errors.New("entity: invalid service parameters")
)
