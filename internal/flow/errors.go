package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrFlowNotFound is returned when a flow id is unknown.
	ErrFlowNotFound = errors.New("flow: not found")

	// ErrFlowExpired is returned when an external callback arrives after the
	// flow's deadline.
	ErrFlowExpired = errors.New("flow: expired")

	// ErrInvalidState is returned when an OAuth state token cannot be verified.
	ErrInvalidState = errors.New("flow: invalid state")

	// ErrNotExternal is returned when a callback targets a flow that is not
	// waiting on an external step.
	ErrNotExternal = errors.New("flow: not waiting for external step")

	// ErrExternalPending is returned when Configure is called on a flow that
	// can only be resumed by its external callback.
	ErrExternalPending = errors.New("flow: external step pending")

	// ErrUnknownHandler is returned when no handler is registered for a domain.
	ErrUnknownHandler = errors.New("flow: unknown handler")

	// ErrUnknownStep is returned by handlers asked to run a step they lack.
	ErrUnknownStep = errors.New("flow: unknown step")

	// ErrUnsupportedSource is returned by Start when the handler has no step
	// for the source, e.g. reauth on an integration without one.
	ErrUnsupportedSource = errors.New("flow: source not supported")
)

// Vendor validation failures. Handlers translate client errors into these and
// then into form errors.
var (
	ErrCannotConnect = errors.New("flow: cannot connect")
	ErrInvalidAuth   = errors.New("flow: invalid auth")
	ErrInvalidHost   = errors.New("flow: invalid host")
)

// AbortError ends a flow with a reason. Helpers such as SetUniqueID return
// it; the Manager turns it into an abort result.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("flow aborted: %s", e.Reason)
}

// ErrorKey maps a validation error to the form error key shown under "base".
func ErrorKey(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAuth):
		return ErrorInvalidAuth
	case errors.Is(err, ErrInvalidHost):
		return ErrorInvalidHost
	case errors.Is(err, ErrCannotConnect):
		return ErrorCannotConnect
	default:
		return ErrorUnknown
	}
}
