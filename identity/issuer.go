package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-xdr/xdr"

	"github.com/najoast/hellonode/core"
)

// TrustContextAttribute is added to every issued credential.
const TrustContextAttribute = "trust_context_id"

const credentialRequest = "credential"

type issueResponse struct {
	Credential []byte
	Error      string
}

// CredentialsIssuer is a worker that issues credentials to the identities
// it reaches over secure channels. A credential carries the attributes the
// repository holds for the requester.
type CredentialsIssuer struct {
	identities     *Identities
	issuer         Identifier
	trustContextID string
	ttl            time.Duration
}

// NewCredentialsIssuer creates an issuer signing with the key of issuer.
func NewCredentialsIssuer(identities *Identities, issuer Identifier, trustContextID string) (*CredentialsIssuer, error) {
	if !identities.Vault().Has(issuer) {
		return nil, fmt.Errorf("%w: %s", ErrNoPrivateKey, issuer)
	}
	return &CredentialsIssuer{
		identities:     identities,
		issuer:         issuer,
		trustContextID: trustContextID,
		ttl:            DefaultCredentialTTL,
	}, nil
}

// WithTTL sets the validity of issued credentials.
func (c *CredentialsIssuer) WithTTL(ttl time.Duration) *CredentialsIssuer {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// HandleMessage issues a credential for the message's authenticated
// identity and sends it back.
func (c *CredentialsIssuer) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	cred, issueErr := c.issue(msg.LocalMessage())

	var resp issueResponse
	if issueErr != nil {
		resp.Error = issueErr.Error()
	} else {
		raw, err := cred.Encode()
		if err != nil {
			return err
		}
		resp.Credential = raw
	}

	payload, err := xdr.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode issuer response: %w", err)
	}
	if err := ctx.SendBytes(msg.ReturnRoute(), payload); err != nil {
		return err
	}
	if issueErr == nil {
		ctx.Loggers().Infof("Issued credential to %s", cred.Subject)
	}
	return issueErr
}

func (c *CredentialsIssuer) issue(msg *core.LocalMessage) (*Credential, error) {
	subject, err := IdentifierFromMessage(msg)
	if err != nil {
		return nil, err
	}
	attrs, ok := c.identities.Repository().GetAttributes(subject)
	if !ok || len(attrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAttributes, subject)
	}
	attrs[TrustContextAttribute] = c.trustContextID
	return c.identities.Credentials().Issue(c.issuer, subject, attrs, c.ttl)
}

// CredentialsIssuerClient requests credentials from a CredentialsIssuer,
// usually through a secure channel.
type CredentialsIssuerClient struct {
	node  *core.Node
	route core.Route
}

// NewCredentialsIssuerClient creates a client for the issuer at route.
func NewCredentialsIssuerClient(node *core.Node, route core.Route) *CredentialsIssuerClient {
	return &CredentialsIssuerClient{node: node, route: route.Clone()}
}

// Credential asks the issuer for a credential.
func (c *CredentialsIssuerClient) Credential(ctx context.Context) (*Credential, error) {
	reply, err := c.node.Request(ctx, c.route, core.EncodeBody(credentialRequest))
	if err != nil {
		return nil, fmt.Errorf("credential request failed: %w", err)
	}

	var resp issueResponse
	if rest, err := xdr.Unmarshal(reply.Payload(), &resp); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("malformed issuer response")
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrIssuerRefused, resp.Error)
	}
	return DecodeCredential(resp.Credential)
}
