package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAudioSource is returned by Start when the session was built
	// without a capture source.
	ErrNoAudioSource = errors.New("session: no audio source configured")

	// ErrNotConnected is returned when an operation needs an open socket
	// and none exists.
	ErrNotConnected = errors.New("session: not connected")

	// ErrReadyTimeout is returned when the server does not signal
	// readiness within the configured wait.
	ErrReadyTimeout = errors.New("session: timed out waiting for session ready")

	// ErrClosed is returned on writes to a torn-down connection.
	ErrClosed = errors.New("session: connection closed")
)

// TransportError wraps a websocket dial or write failure.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is an application-level error reported by the backend over
// the socket. It does not tear the session down.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}
