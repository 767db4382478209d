package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/davecgh/go-xdr/xdr"
)

// DefaultCredentialTTL is how long issued credentials stay valid unless the
// issuer is configured otherwise.
const DefaultCredentialTTL = 30 * 24 * time.Hour

// Credential is a set of attributes about Subject signed by Issuer.
type Credential struct {
	Subject    Identifier
	Issuer     Identifier
	Attributes Attributes
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Signature  []byte
}

type attributePair struct {
	Key   string
	Value string
}

// credentialData is the signed part of a credential. Attributes are sorted
// by key so that the encoding is canonical.
type credentialData struct {
	Subject    string
	Issuer     string
	Attributes []attributePair
	CreatedAt  int64
	ExpiresAt  int64
}

type wireCredential struct {
	Data      []byte
	Signature []byte
}

func (c *Credential) data() credentialData {
	d := credentialData{
		Subject:   string(c.Subject),
		Issuer:    string(c.Issuer),
		CreatedAt: c.CreatedAt.Unix(),
		ExpiresAt: c.ExpiresAt.Unix(),
	}
	for _, k := range c.Attributes.Keys() {
		d.Attributes = append(d.Attributes, attributePair{Key: k, Value: c.Attributes[k]})
	}
	return d
}

// SignedBytes returns the bytes the issuer signs.
func (c *Credential) SignedBytes() ([]byte, error) {
	data, err := xdr.Marshal(c.data())
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}
	return data, nil
}

// Encode serializes the credential with its signature.
func (c *Credential) Encode() ([]byte, error) {
	data, err := c.SignedBytes()
	if err != nil {
		return nil, err
	}
	out, err := xdr.Marshal(wireCredential{Data: data, Signature: c.Signature})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}
	return out, nil
}

// DecodeCredential parses the output of Encode. It does not verify the
// signature.
func DecodeCredential(raw []byte) (*Credential, error) {
	var w wireCredential
	if rest, err := xdr.Unmarshal(raw, &w); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("malformed credential")
	}
	var d credentialData
	if rest, err := xdr.Unmarshal(w.Data, &d); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("malformed credential data")
	}

	attrs := make(Attributes, len(d.Attributes))
	for _, p := range d.Attributes {
		attrs[p.Key] = p.Value
	}
	return &Credential{
		Subject:    Identifier(d.Subject),
		Issuer:     Identifier(d.Issuer),
		Attributes: attrs,
		CreatedAt:  time.Unix(d.CreatedAt, 0),
		ExpiresAt:  time.Unix(d.ExpiresAt, 0),
		Signature:  w.Signature,
	}, nil
}

// String renders the credential over several lines.
func (c *Credential) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Credential:\n")
	fmt.Fprintf(&b, "  subject:    %s\n", c.Subject)
	fmt.Fprintf(&b, "  issuer:     %s\n", c.Issuer)
	fmt.Fprintf(&b, "  created:    %s\n", c.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  expires:    %s\n", c.ExpiresAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  attributes: %s", c.Attributes)
	return b.String()
}

// Credentials issues and verifies credentials with the keys of an
// identity store.
type Credentials struct {
	identities *Identities
	now        func() time.Time
}

func newCredentials(identities *Identities) *Credentials {
	return &Credentials{identities: identities, now: time.Now}
}

// Issue signs attrs about subject with the key of issuer.
func (c *Credentials) Issue(issuer, subject Identifier, attrs Attributes, ttl time.Duration) (*Credential, error) {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	now := time.Unix(c.now().Unix(), 0)
	cred := &Credential{
		Subject:    subject,
		Issuer:     issuer,
		Attributes: attrs.Clone(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	data, err := cred.SignedBytes()
	if err != nil {
		return nil, err
	}
	sig, err := c.identities.Sign(issuer, data)
	if err != nil {
		return nil, err
	}
	cred.Signature = sig
	return cred, nil
}

// VerifyCredential checks that cred was issued about subject by one of
// authorities, is correctly signed and has not expired.
func (c *Credentials) VerifyCredential(subject Identifier, authorities []*Identity, cred *Credential) error {
	if cred == nil {
		return fmt.Errorf("%w: no credential", ErrInvalidSignature)
	}
	if cred.Subject != subject {
		return fmt.Errorf("%w: %s, want %s", ErrSubjectMismatch, cred.Subject, subject)
	}

	var authority *Identity
	for _, a := range authorities {
		if a.Identifier() == cred.Issuer {
			authority = a
			break
		}
	}
	if authority == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAuthority, cred.Issuer)
	}

	data, err := cred.SignedBytes()
	if err != nil {
		return err
	}
	if !authority.Verify(data, cred.Signature) {
		return fmt.Errorf("%w: credential for %s", ErrInvalidSignature, subject)
	}

	if !c.now().Before(cred.ExpiresAt) {
		return fmt.Errorf("%w: at %s", ErrCredentialExpired, cred.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}
