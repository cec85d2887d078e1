package gateway

import (
	"errors"
	"fmt"
)

// TransportError is the only error kind the gateway returns. It covers dial
// failures, timeouts, non-2xx answers and bodies that could not be decoded.
type TransportError struct {
	Op         string
	StatusCode int
	// Message is the server-supplied message, when the body carried one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport error"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage collapses err into the one string a user sees: the server's message
// when there is one, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var te *TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return fallback
}
