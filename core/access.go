package core

import "context"

// IncomingAccessControl decides whether a worker may receive a message.
type IncomingAccessControl interface {
	IsAuthorized(ctx context.Context, msg *LocalMessage) (bool, error)
}

// OutgoingAccessControl decides whether a worker may send a message.
type OutgoingAccessControl interface {
	IsAuthorized(ctx context.Context, msg *LocalMessage) (bool, error)
}

// AllowAll authorizes every message.
type AllowAll struct{}

// IsAuthorized always returns true.
func (AllowAll) IsAuthorized(context.Context, *LocalMessage) (bool, error) {
	return true, nil
}

// DenyAll rejects every message.
type DenyAll struct{}

// IsAuthorized always returns false.
func (DenyAll) IsAuthorized(context.Context, *LocalMessage) (bool, error) {
	return false, nil
}

// AccessControlFunc adapts a function to both access control interfaces.
type AccessControlFunc func(ctx context.Context, msg *LocalMessage) (bool, error)

// IsAuthorized calls f(ctx, msg).
func (f AccessControlFunc) IsAuthorized(ctx context.Context, msg *LocalMessage) (bool, error) {
	return f(ctx, msg)
}
