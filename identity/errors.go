package identity

import "errors"

// Identity errors
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrUnknownIdentity   = errors.New("unknown identity")
	ErrNoPrivateKey      = errors.New("no private key for identity")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidChange     = errors.New("invalid change history")
	ErrKeyMismatch       = errors.New("secret does not match change history")
	ErrNoIdentityInfo    = errors.New("message carries no authenticated identity")
)

// Credential errors
var (
	ErrCredentialExpired = errors.New("credential expired")
	ErrUnknownAuthority  = errors.New("credential issuer is not a trusted authority")
	ErrSubjectMismatch   = errors.New("credential subject does not match")
	ErrNoAttributes      = errors.New("no attributes for identity")
	ErrIssuerRefused     = errors.New("credential issuer refused request")
)
