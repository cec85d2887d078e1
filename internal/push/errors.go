package push

import "errors"

// Use errors.Is() to check for these in calling code.
var (
	// ErrNotConnected is returned by Subscribe when Connect has not been called
	// or the channel was disconnected.
	ErrNotConnected = errors.New("push: channel not connected")

	// ErrInvalidKind is returned when subscribing to an empty event kind.
	ErrInvalidKind = errors.New("push: event kind cannot be empty")

	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("push: handler cannot be nil")

	// ErrInvalidURL is returned by New when the socket URL cannot be mapped to ws(s).
	ErrInvalidURL = errors.New("push: invalid socket url")
)
