package identity

import (
	"context"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/hellonode/core"
)

const testTimeout = 2 * time.Second

// authenticator stands in for a secure channel decryptor: it tags messages
// with a fixed identity and forwards them to the rest of the route.
type authenticator struct{ id Identifier }

func (a authenticator) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	lm := msg.LocalMessage()
	lm.Transport.OnwardRoute.PopFront()
	lm.LocalInfo = append(lm.LocalInfo, IdentityInfo{Identifier: a.id})
	return ctx.Forward(lm)
}

func newTestNode(t *testing.T) (*core.Node, *ldlogtest.MockLog) {
	t.Helper()
	mockLog := ldlogtest.NewMockLog()
	n, err := core.NewNode(core.WithLoggers(mockLog.Loggers))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return n, mockLog
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestCredentialsIssuer(t *testing.T) {
	node, _ := newTestNode(t)
	s := newAuthoritySetup(t)
	s.identities.Repository().PutAttributeValue(s.subject.Identifier(), "cluster", "production")

	issuer, err := NewCredentialsIssuer(s.identities, s.authority.Identifier(), "tc1")
	require.NoError(t, err)
	require.NoError(t, node.StartWorker(core.LocalAddress("issuer"), issuer.WithTTL(time.Hour)))
	require.NoError(t, node.StartWorker(core.LocalAddress("auth"), authenticator{id: s.subject.Identifier()}))

	client := NewCredentialsIssuerClient(node, core.NewRoute("auth", "issuer"))
	cred, err := client.Credential(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, s.subject.Identifier(), cred.Subject)
	assert.Equal(t, Attributes{"cluster": "production", TrustContextAttribute: "tc1"}, cred.Attributes)
	assert.Equal(t, time.Hour, cred.ExpiresAt.Sub(cred.CreatedAt))
	assert.NoError(t, s.identities.Credentials().VerifyCredential(s.subject.Identifier(), []*Identity{s.authority}, cred))
}

func TestCredentialsIssuerRefusesUnknownMembers(t *testing.T) {
	node, mockLog := newTestNode(t)
	s := newAuthoritySetup(t)

	issuer, err := NewCredentialsIssuer(s.identities, s.authority.Identifier(), "tc1")
	require.NoError(t, err)
	require.NoError(t, node.StartWorker(core.LocalAddress("issuer"), issuer))
	require.NoError(t, node.StartWorker(core.LocalAddress("auth"), authenticator{id: s.subject.Identifier()}))

	_, err = NewCredentialsIssuerClient(node, core.NewRoute("auth", "issuer")).Credential(testContext(t))
	assert.ErrorIs(t, err, ErrIssuerRefused)
	assert.Eventually(t, func() bool {
		return mockLog.HasMessageMatch(ldlog.Error, "no attributes for identity")
	}, testTimeout, 10*time.Millisecond)
}

func TestCredentialsIssuerRequiresAuthenticatedSender(t *testing.T) {
	node, _ := newTestNode(t)
	s := newAuthoritySetup(t)
	s.identities.Repository().PutAttributeValue(s.subject.Identifier(), "cluster", "production")

	issuer, err := NewCredentialsIssuer(s.identities, s.authority.Identifier(), "tc1")
	require.NoError(t, err)
	require.NoError(t, node.StartWorker(core.LocalAddress("issuer"), issuer))

	_, err = NewCredentialsIssuerClient(node, core.NewRoute("issuer")).Credential(testContext(t))
	assert.ErrorIs(t, err, ErrIssuerRefused)
}

func TestNewCredentialsIssuerRequiresKey(t *testing.T) {
	s := newAuthoritySetup(t)
	public := NewIdentities()
	_, err := public.ImportIdentity(s.authority.ChangeHistory())
	require.NoError(t, err)

	_, err = NewCredentialsIssuer(public, s.authority.Identifier(), "tc1")
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestIdentityAccessControl(t *testing.T) {
	s := newAuthoritySetup(t)
	ctx := context.Background()
	tagged := func(id Identifier) *core.LocalMessage {
		return core.NewLocalMessage(core.TransportMessage{}, []core.LocalInfo{IdentityInfo{Identifier: id}})
	}
	untagged := core.NewLocalMessage(core.TransportMessage{}, nil)

	ac := NewIdentityIDAccessControl(s.subject.Identifier())
	ok, err := ac.IsAuthorized(ctx, tagged(s.subject.Identifier()))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = ac.IsAuthorized(ctx, tagged(s.authority.Identifier()))
	assert.False(t, ok)
	ok, _ = ac.IsAuthorized(ctx, untagged)
	assert.False(t, ok)

	repo := NewRepository()
	repo.PutAttributeValue(s.subject.Identifier(), "cluster", "production")
	repo.PutAttributeValue(s.authority.Identifier(), "cluster", "staging")
	abac := NewAbacAccessControl(repo, "cluster", "production")
	ok, err = abac.IsAuthorized(ctx, tagged(s.subject.Identifier()))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = abac.IsAuthorized(ctx, tagged(s.authority.Identifier()))
	assert.False(t, ok)
	ok, _ = abac.IsAuthorized(ctx, untagged)
	assert.False(t, ok)
}

func TestIdentifierFromMessage(t *testing.T) {
	_, err := IdentifierFromMessage(core.NewLocalMessage(core.TransportMessage{}, nil))
	assert.ErrorIs(t, err, ErrNoIdentityInfo)
}
