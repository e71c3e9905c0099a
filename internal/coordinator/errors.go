package coordinator

import "errors"

var (
	// ErrUpdateFailed is returned when a scheduled or manual refresh fails.
	// The previous snapshot stays published.
	ErrUpdateFailed = errors.New("coordinator: update failed")

	// ErrNotReady is returned when the first refresh of a new coordinator
	// fails. The entry should be set up again later.
	ErrNotReady = errors.New("coordinator: not ready")
)
