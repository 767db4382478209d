package securechannel

import "errors"

var (
	// ErrHandshake is returned when a channel could not be established.
	ErrHandshake = errors.New("secure channel handshake failed")

	// ErrInvalidFrame is returned for frames that cannot be decoded or that
	// arrive in the wrong state.
	ErrInvalidFrame = errors.New("invalid secure channel frame")
)
