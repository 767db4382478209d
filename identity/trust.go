package identity

import (
	"context"
)

// AuthorityService verifies credentials issued by one authority and records
// the attributes they attest.
type AuthorityService struct {
	identities *Identities
	authority  *Identity
}

// NewAuthorityService trusts authority for the identities store.
func NewAuthorityService(identities *Identities, authority *Identity) *AuthorityService {
	return &AuthorityService{identities: identities, authority: authority}
}

// Authority returns the trusted identity.
func (a *AuthorityService) Authority() *Identity { return a.authority }

// VerifyAndStore verifies cred for subject and stores its attributes until
// the credential expires.
func (a *AuthorityService) VerifyAndStore(ctx context.Context, subject Identifier, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.identities.Credentials().VerifyCredential(subject, []*Identity{a.authority}, cred); err != nil {
		return err
	}
	a.identities.Repository().PutAttributes(subject, cred.Attributes, cred.ExpiresAt)
	return nil
}

// TrustContext names the authority a node trusts for credential exchange.
type TrustContext struct {
	id        string
	authority *AuthorityService
}

// NewTrustContext creates a trust context. authority may be nil, in which
// case presented credentials cannot be verified.
func NewTrustContext(id string, authority *AuthorityService) *TrustContext {
	return &TrustContext{id: id, authority: authority}
}

// ID returns the trust context id.
func (t *TrustContext) ID() string { return t.id }

// Authority returns the authority service.
func (t *TrustContext) Authority() *AuthorityService { return t.authority }
