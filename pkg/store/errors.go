package store

import (
	"errors"
	"fmt"
)

var (
	ErrNoSession         = errors.New("no such session")
	ErrUnknownConnector  = errors.New("unknown connector type")
	ErrMalformedResponse = errors.New("malformed backend response")
)

// BackendError wraps a failed call to the graph backend.
type BackendError struct {
	Operation string
	Session   Session
	// Payload is the serialized request, if there was one.
	Payload string
	// Response is the raw error body returned by the backend.
	Response string
	Status   int
	Err      error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("failed to %s: session - %q; data - %s; response - %s",
		e.Operation, string(e.Session), e.Payload, e.Response)
	if e.Status != 0 {
		msg += fmt.Sprintf("; status - %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Err }
