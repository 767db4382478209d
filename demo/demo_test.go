package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/hellonode/admin"
	"github.com/najoast/hellonode/config"
	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/identity"
	"github.com/najoast/hellonode/securechannel"
	"github.com/najoast/hellonode/tcp"
	"github.com/najoast/hellonode/workers"
)

const testTimeout = 5 * time.Second

var echoReply = workers.EchoPrefix + Message

func testOptions() (Options, *bytes.Buffer) {
	var buf bytes.Buffer
	return Options{
		ResponderListen: "127.0.0.1:0",
		MiddleListen:    "127.0.0.1:0",
		IssuerListen:    "127.0.0.1:0",
		Printer:         display.New(&buf),
		Loggers:         ldlog.NewDisabledLoggers(),
	}, &buf
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestScenarioNames(t *testing.T) {
	assert.Equal(t, []string{
		"credential-exchange",
		"identity",
		"node",
		"routing",
		"routing-many-hops",
		"routing-over-transport",
		"routing-over-two-hops",
		"secure-channel",
		"worker",
	}, Names())

	opts, _ := testOptions()
	assert.Error(t, Run(testContext(t), "nope", opts))
}

func TestScenarios(t *testing.T) {
	for _, tc := range []struct {
		name string
		want []string
	}{
		{"node", []string{"Run a node & stop it right away", "│ 'app'          │"}},
		{"worker", []string{"App Sending: 'Hello Ockam!'", "App Received: '" + echoReply + "'"}},
		{"routing", []string{"🐇 Address: 0#h1", "over route: '[0#h1, 0#echoer]'", "App Received: " + echoReply}},
		{"routing-many-hops", []string{"🐇 Address: 0#h3", "App Received: " + echoReply}},
		{"routing-over-transport", []string{
			"and received: '" + echoReply + "'",
			"App finished, stopping responder node",
		}},
		{"routing-over-two-hops", []string{
			"👉 Address: 0#forward_to_responder",
			"and received: '" + echoReply + "'",
			"App finished, stopping responder & middle nodes",
		}},
		{"identity", []string{"Identity identifier for Alice: \nIdentifier:"}},
		{"secure-channel", []string{
			"Connected to secure channel listener from 'alice' after performing handshake",
			"👉 Address: 0#forward_to_bob",
			"and received: '" + echoReply + "'",
		}},
		{"credential-exchange", []string{
			"🔒 issuer started",
			"🔒✅ Credential verified as signed by the issuer",
			"cluster=production",
			"Received: '" + echoReply + "'",
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts, buf := testOptions()
			require.NoError(t, Run(testContext(t), tc.name, opts))
			for _, want := range tc.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRoutingOverTransportFailsOnBadListenAddress(t *testing.T) {
	opts, _ := testOptions()
	opts.ResponderListen = "256.0.0.1:1"
	assert.Error(t, RunRoutingOverTransport(testContext(t), opts))
}

func serveConfig(role config.Role) *config.Config {
	cfg := config.DefaultConfig()
	cfg.App.Name = string(role)
	cfg.App.Role = role
	cfg.Transport.Listen = "127.0.0.1:0"
	cfg.Admin.Listen = "127.0.0.1:0"
	return cfg
}

func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := NewServer(cfg, nil, ldlog.NewDisabledLoggers())
	require.NoError(t, err)
	require.NoError(t, s.Start(testContext(t)))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func newClient(t *testing.T) (*core.Node, *tcp.Transport) {
	t.Helper()
	node, err := core.NewNode()
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Stop(context.Background()) })
	transport, err := tcp.NewTransport(node)
	require.NoError(t, err)
	return node, transport
}

func TestServeResponderAndMiddle(t *testing.T) {
	responder := startTestServer(t, serveConfig(config.RoleResponder))

	middleCfg := serveConfig(config.RoleMiddle)
	middleCfg.Transport.Connect = responder.ListenAddr()
	middle := startTestServer(t, middleCfg)

	node, transport := newClient(t)
	ctx := testContext(t)

	direct, err := transport.Connect(ctx, responder.ListenAddr(), tcp.NewConnectionOptions())
	require.NoError(t, err)
	reply, err := node.SendAndReceive(ctx, core.RouteOf(direct.SenderAddress(), echoerAddress), Message)
	require.NoError(t, err)
	assert.Equal(t, echoReply, reply)

	viaMiddle, err := transport.Connect(ctx, middle.ListenAddr(), tcp.NewConnectionOptions())
	require.NoError(t, err)
	reply, err = node.SendAndReceive(ctx, core.RouteOf(viaMiddle.SenderAddress(), forwarderAddress, echoerAddress), Message)
	require.NoError(t, err)
	assert.Equal(t, echoReply, reply)
}

func TestServeAdmin(t *testing.T) {
	cfg := serveConfig(config.RoleResponder)
	cfg.Admin.Enabled = true
	s := startTestServer(t, cfg)
	require.NotEmpty(t, s.AdminAddr())

	resp, err := http.Get("http://" + s.AdminAddr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status admin.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "responder", status.Node)
	assert.Equal(t, s.Identity().Identifier().String(), status.Identifier)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "running", string(status.Services["listener"]))
}

func TestServeIssuerAndGuardedResponder(t *testing.T) {
	client, err := publicIdentity(clientSecret)
	require.NoError(t, err)
	membersFile := filepath.Join(t.TempDir(), "members.yaml")
	require.NoError(t, os.WriteFile(membersFile, []byte(
		"members:\n  - identifier: "+client.Identifier().String()+"\n    attributes:\n      cluster: production\n"), 0o600))

	issuerCfg := serveConfig(config.RoleIssuer)
	issuerCfg.Identity.Secret = issuerSecret
	issuerCfg.Issuer.MembersFile = membersFile
	issuer := startTestServer(t, issuerCfg)

	responderCfg := serveConfig(config.RoleResponder)
	responderCfg.Identity.Authority = issuer.Identity().Export()
	responder := startTestServer(t, responderCfg)

	node, transport := newClient(t)
	ctx := testContext(t)
	ids := identity.NewIdentities()
	self, err := ids.IdentityFromSecret(clientSecret)
	require.NoError(t, err)

	cred, _, err := fetchCredential(ctx, node, transport, ids, self.Identifier(), issuer.ListenAddr())
	require.NoError(t, err)
	assert.Equal(t, "production", cred.Attributes[clusterAttribute])

	conn, err := transport.Connect(ctx, responder.ListenAddr(), tcp.NewConnectionOptions())
	require.NoError(t, err)
	route := core.RouteOf(conn.SenderAddress(), secureServerAddress)

	withCred, err := securechannel.Create(ctx, node, ids, self.Identifier(), route, securechannel.NewOptions().WithCredential(cred))
	require.NoError(t, err)
	reply, err := node.SendAndReceive(ctx, core.RouteOf(withCred.EncryptorAddress(), echoerAddress), Message)
	require.NoError(t, err)
	assert.Equal(t, echoReply, reply)

	// Plain TCP traffic does not reach the guarded echoer.
	short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = node.SendAndReceive(short, core.RouteOf(conn.SenderAddress(), echoerAddress), Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServeIssuerRefusesStrangers(t *testing.T) {
	member, err := publicIdentity(serverSecret)
	require.NoError(t, err)
	membersFile := filepath.Join(t.TempDir(), "members.yaml")
	require.NoError(t, os.WriteFile(membersFile, []byte(
		"members:\n  - identifier: "+member.Identifier().String()+"\n    attributes:\n      cluster: production\n"), 0o600))

	cfg := serveConfig(config.RoleIssuer)
	cfg.Identity.Secret = issuerSecret
	cfg.Issuer.MembersFile = membersFile
	issuer := startTestServer(t, cfg)

	node, transport := newClient(t)
	ids := identity.NewIdentities()
	stranger, err := ids.IdentityFromSecret(clientSecret)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(testContext(t), 300*time.Millisecond)
	defer cancel()
	_, _, err = fetchCredential(ctx, node, transport, ids, stranger.Identifier(), issuer.ListenAddr())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, serveConfig(config.RoleResponder), nil, ldlog.NewDisabledLoggers()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		require.Fail(t, "Serve did not return")
	}
}

func TestNewServerValidatesConfig(t *testing.T) {
	cfg := serveConfig(config.RoleIssuer)
	_, err := NewServer(cfg, nil, ldlog.NewDisabledLoggers())
	assert.ErrorIs(t, err, config.ErrMissingMembersFile)
}
