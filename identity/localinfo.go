package identity

import (
	"github.com/najoast/hellonode/core"
)

// IdentityInfoType is the local info type set by secure channel decryptors.
const IdentityInfoType = "identity"

// IdentityInfo carries the authenticated identifier of the peer a message
// arrived from.
type IdentityInfo struct {
	Identifier Identifier
}

// LocalInfoType implements core.LocalInfo.
func (IdentityInfo) LocalInfoType() string { return IdentityInfoType }

// IdentifierFromMessage returns the authenticated identifier of msg.
func IdentifierFromMessage(msg *core.LocalMessage) (Identifier, error) {
	info, ok := msg.FindLocalInfo(IdentityInfoType)
	if !ok {
		return "", ErrNoIdentityInfo
	}
	return info.(IdentityInfo).Identifier, nil
}
