package core

import "errors"

// Routing errors
var (
	ErrEmptyRoute     = errors.New("route is empty")
	ErrUnknownAddress = errors.New("no worker at address")
	ErrAddressInUse   = errors.New("address already in use")
	ErrNoTransport    = errors.New("no transport registered for address type")
	ErrNotAllowed     = errors.New("message rejected by flow control")
	ErrAccessDenied   = errors.New("message rejected by access control")
)

// Lifecycle errors
var (
	ErrNodeStopped   = errors.New("node is stopped")
	ErrWorkerStopped = errors.New("worker is stopped")
	ErrMailboxFull   = errors.New("worker mailbox is full")
)

// ErrNotString is returned when a payload is decoded as a string body but
// does not hold one.
var ErrNotString = errors.New("payload is not a string body")
