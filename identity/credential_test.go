package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authoritySetup struct {
	identities *Identities
	authority  *Identity
	subject    *Identity
}

func newAuthoritySetup(t *testing.T) authoritySetup {
	t.Helper()
	ids := NewIdentities()
	authority, err := ids.CreateIdentity()
	require.NoError(t, err)
	subject, err := ids.CreateIdentity()
	require.NoError(t, err)
	return authoritySetup{identities: ids, authority: authority, subject: subject}
}

func TestIssueAndVerifyCredential(t *testing.T) {
	s := newAuthoritySetup(t)
	creds := s.identities.Credentials()

	cred, err := creds.Issue(s.authority.Identifier(), s.subject.Identifier(), Attributes{"cluster": "production"}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, s.subject.Identifier(), cred.Subject)
	assert.Equal(t, s.authority.Identifier(), cred.Issuer)
	assert.Equal(t, time.Hour, cred.ExpiresAt.Sub(cred.CreatedAt))

	require.NoError(t, creds.VerifyCredential(s.subject.Identifier(), []*Identity{s.authority}, cred))
	assert.Contains(t, cred.String(), "cluster=production")
}

func TestCredentialEncoding(t *testing.T) {
	s := newAuthoritySetup(t)
	cred, err := s.identities.Credentials().Issue(s.authority.Identifier(), s.subject.Identifier(),
		Attributes{"b": "2", "a": "1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCredentialTTL, cred.ExpiresAt.Sub(cred.CreatedAt))

	raw, err := cred.Encode()
	require.NoError(t, err)
	decoded, err := DecodeCredential(raw)
	require.NoError(t, err)
	assert.Equal(t, cred.Attributes, decoded.Attributes)
	assert.True(t, cred.ExpiresAt.Equal(decoded.ExpiresAt))
	assert.NoError(t, s.identities.Credentials().VerifyCredential(s.subject.Identifier(), []*Identity{s.authority}, decoded))

	_, err = DecodeCredential(raw[:len(raw)-3])
	assert.Error(t, err)
}

func TestVerifyCredentialFailures(t *testing.T) {
	s := newAuthoritySetup(t)
	creds := s.identities.Credentials()
	cred, err := creds.Issue(s.authority.Identifier(), s.subject.Identifier(), Attributes{"k": "v"}, time.Hour)
	require.NoError(t, err)

	t.Run("subject mismatch", func(t *testing.T) {
		err := creds.VerifyCredential(s.authority.Identifier(), []*Identity{s.authority}, cred)
		assert.ErrorIs(t, err, ErrSubjectMismatch)
	})

	t.Run("unknown authority", func(t *testing.T) {
		err := creds.VerifyCredential(s.subject.Identifier(), []*Identity{s.subject}, cred)
		assert.ErrorIs(t, err, ErrUnknownAuthority)
	})

	t.Run("tampered attributes", func(t *testing.T) {
		forged := *cred
		forged.Attributes = Attributes{"k": "admin"}
		err := creds.VerifyCredential(s.subject.Identifier(), []*Identity{s.authority}, &forged)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		late := newCredentials(s.identities)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		err := late.VerifyCredential(s.subject.Identifier(), []*Identity{s.authority}, cred)
		assert.ErrorIs(t, err, ErrCredentialExpired)
	})

	t.Run("missing", func(t *testing.T) {
		err := creds.VerifyCredential(s.subject.Identifier(), []*Identity{s.authority}, nil)
		assert.Error(t, err)
	})
}

func TestIssueRequiresPrivateKey(t *testing.T) {
	s := newAuthoritySetup(t)
	public := NewIdentities()
	_, err := public.ImportIdentity(s.authority.ChangeHistory())
	require.NoError(t, err)

	_, err = public.Credentials().Issue(s.authority.Identifier(), s.subject.Identifier(), Attributes{"k": "v"}, time.Hour)
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestAuthorityServiceStoresAttributes(t *testing.T) {
	s := newAuthoritySetup(t)
	cred, err := s.identities.Credentials().Issue(s.authority.Identifier(), s.subject.Identifier(),
		Attributes{"cluster": "production"}, time.Hour)
	require.NoError(t, err)

	verifier := NewIdentities()
	authority, err := verifier.ImportIdentity(s.authority.ChangeHistory())
	require.NoError(t, err)
	svc := NewAuthorityService(verifier, authority)
	assert.Equal(t, authority, svc.Authority())

	require.NoError(t, svc.VerifyAndStore(context.Background(), s.subject.Identifier(), cred))
	v, ok := verifier.Repository().GetAttributeValue(s.subject.Identifier(), "cluster")
	require.True(t, ok)
	assert.Equal(t, "production", v)

	tc := NewTrustContext("tc1", svc)
	assert.Equal(t, "tc1", tc.ID())
	assert.Equal(t, svc, tc.Authority())
}

func TestAuthorityServiceRejectsForeignCredential(t *testing.T) {
	s := newAuthoritySetup(t)
	cred, err := s.identities.Credentials().Issue(s.subject.Identifier(), s.subject.Identifier(),
		Attributes{"cluster": "production"}, time.Hour)
	require.NoError(t, err)

	svc := NewAuthorityService(s.identities, s.authority)
	err = svc.VerifyAndStore(context.Background(), s.subject.Identifier(), cred)
	assert.ErrorIs(t, err, ErrUnknownAuthority)
	_, ok := s.identities.Repository().GetAttributes(s.subject.Identifier())
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.VerifyAndStore(ctx, s.subject.Identifier(), cred), context.Canceled)
}

func TestRepositoryExpiry(t *testing.T) {
	repo := NewRepository()
	now := time.Now()
	repo.now = func() time.Time { return now }

	id := Identifier("Pa")
	repo.PutAttributes(id, Attributes{"k": "v"}, now.Add(time.Minute))
	repo.PutAttributeValue("Pb", "x", "y")
	assert.Equal(t, []Identifier{"Pa", "Pb"}, repo.Identifiers())

	now = now.Add(2 * time.Minute)
	_, ok := repo.GetAttributes(id)
	assert.False(t, ok)
	assert.Equal(t, []Identifier{"Pb"}, repo.Identifiers())

	repo.DeleteIdentity("Pb")
	assert.Empty(t, repo.Identifiers())
}

func TestAttributes(t *testing.T) {
	attrs := Attributes{"b": "2", "a": "1"}
	assert.Equal(t, []string{"a", "b"}, attrs.Keys())
	assert.Equal(t, "a=1, b=2", attrs.String())

	clone := attrs.Clone()
	clone["c"] = "3"
	assert.Len(t, attrs, 2)
}
