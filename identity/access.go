package identity

import (
	"context"

	"github.com/najoast/hellonode/core"
)

// IdentityIDAccessControl admits messages from a fixed set of
// authenticated identifiers.
type IdentityIDAccessControl struct {
	allowed map[Identifier]struct{}
}

// NewIdentityIDAccessControl allows ids.
func NewIdentityIDAccessControl(ids ...Identifier) *IdentityIDAccessControl {
	ac := &IdentityIDAccessControl{allowed: make(map[Identifier]struct{}, len(ids))}
	for _, id := range ids {
		ac.allowed[id] = struct{}{}
	}
	return ac
}

// IsAuthorized implements core.IncomingAccessControl.
func (ac *IdentityIDAccessControl) IsAuthorized(_ context.Context, msg *core.LocalMessage) (bool, error) {
	id, err := IdentifierFromMessage(msg)
	if err != nil {
		return false, nil
	}
	_, ok := ac.allowed[id]
	return ok, nil
}

// AbacAccessControl admits messages whose authenticated identity has
// attribute set to value in the repository.
type AbacAccessControl struct {
	repository *Repository
	attribute  string
	value      string
}

// NewAbacAccessControl creates an attribute check against repo.
func NewAbacAccessControl(repo *Repository, attribute, value string) *AbacAccessControl {
	return &AbacAccessControl{repository: repo, attribute: attribute, value: value}
}

// IsAuthorized implements core.IncomingAccessControl.
func (ac *AbacAccessControl) IsAuthorized(_ context.Context, msg *core.LocalMessage) (bool, error) {
	id, err := IdentifierFromMessage(msg)
	if err != nil {
		return false, nil
	}
	v, ok := ac.repository.GetAttributeValue(id, ac.attribute)
	return ok && v == ac.value, nil
}
