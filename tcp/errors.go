package tcp

import (
	"errors"
	"fmt"
)

var (
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
	ErrTransportStopped = errors.New("tcp transport is stopped")
	ErrConnectionClosed = errors.New("connection is closed")
)

// Error represents a failure in a network operation.
type Error struct {
	Op   string // operation: "dial", "listen", "accept", "write", "read"
	Addr string // network address involved
	Err  error  // underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tcp %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
