package platform

import "errors"

var (
	// ErrUnknownIntegration is returned when an entry's domain has no integration.
	ErrUnknownIntegration = errors.New("platform: unknown integration")

	// ErrNotLoaded is returned when an operation needs a loaded entry.
	ErrNotLoaded = errors.New("platform: entry not loaded")

	// ErrInvalidCommand is returned for malformed MQTT service calls.
	ErrInvalidCommand = errors.New("platform: invalid command")
)
