package socketio

import (
	"errors"
	"fmt"
)

var (
	ErrClosed       = errors.New("socket session closed")
	ErrNotConnected = errors.New("socket session not connected")
	ErrRateLimited  = errors.New("emit rate limit exceeded")
)

// ErrorKind classifies every error a session reports to its callers.
type ErrorKind int

const (
	ErrorUser     ErrorKind = iota // an event handler panicked
	ErrorInternal                  // dial, read, write or protocol failure
	ErrorServer                    // the server refused or closed the session
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorUser:
		return "user"
	case ErrorInternal:
		return "internal"
	default:
		return "server"
	}
}

// Describe returns a short human readable label for log lines.
func (k ErrorKind) Describe() string {
	switch k {
	case ErrorUser:
		return "exception in an event handler"
	case ErrorInternal:
		return "internal error"
	default:
		return "server error"
	}
}

// Error is the error type delivered to OnError handlers.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("socket.io %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or ErrorInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Kind
	}
	return ErrorInternal
}
