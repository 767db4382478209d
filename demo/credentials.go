package demo

import (
	"context"
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/identity"
	"github.com/najoast/hellonode/securechannel"
	"github.com/najoast/hellonode/tcp"
	"github.com/najoast/hellonode/workers"
)

// Seeds of the identities of the credential exchange. The issuer knows the
// client and server identifiers in advance because it can derive them.
const (
	issuerSecret = "9278735d525efceef16bfd9143d3534759f3d388e460e6002134b9541e06489f"
	serverSecret = "5b2b3f2abbd1787704d8f8b363529f8e2d8f423b6dd4b96a2c462e4f0e04ee18"
	clientSecret = "41b6873b20d95567bf958e6bab2808e9157720040882630b1bb37a72f4015cd2"
)

const (
	clusterAttribute = "cluster"
	clusterValue     = "production"
	trustContextID   = "trust_context_id"
)

var (
	issuerAddress       = core.LocalAddress("issuer")
	secureIssuerAddress = core.LocalAddress("secure-issuer")
	secureServerAddress = core.LocalAddress("secure-server")
)

// RunCredentialExchange runs an issuer that knows its members in advance,
// a server whose echoer only admits members of the production cluster,
// and a client that gets a credential and uses it to reach the echoer.
func RunCredentialExchange(ctx context.Context, opts Options) error {
	issuerNode, issuerAddr, err := startIssuer(ctx, opts)
	if err != nil {
		return err
	}
	serverNode, serverAddr, err := startServer(ctx, opts, issuerAddr)
	if err != nil {
		return joinStop(ctx, err, issuerNode)
	}

	err = runClient(ctx, opts, issuerAddr, serverAddr)
	return joinStop(ctx, err, serverNode, issuerNode)
}

// publicIdentity derives the public identity of secret in a throwaway
// store.
func publicIdentity(secret string) (*identity.Identity, error) {
	id, err := identity.NewIdentities().IdentityFromSecret(secret)
	if err != nil {
		return nil, err
	}
	return identity.ParseIdentity(id.ChangeHistory())
}

func startIssuer(ctx context.Context, opts Options) (*core.Node, string, error) {
	p := opts.Printer
	p.Title("Create a node that runs a credential exchange issuer (creds are known in advance) on 5000 → wait for messages until stopped", display.TitleLight)

	node, transport, err := newTransportNode("issuer", opts)
	if err != nil {
		return nil, "", err
	}
	fail := func(err error) (*core.Node, string, error) {
		return nil, "", joinStop(ctx, err, node)
	}

	ids := identity.NewIdentities()
	issuer, err := ids.IdentityFromSecret(issuerSecret)
	if err != nil {
		return fail(err)
	}
	p.Println(display.OnBrightPurple, fmt.Sprintf("🔒 issuer identifier %s", issuer.Identifier()))

	var known []identity.Identifier
	for _, secret := range []string{clientSecret, serverSecret} {
		member, err := publicIdentity(secret)
		if err != nil {
			return fail(err)
		}
		known = append(known, member.Identifier())
		ids.Repository().PutAttributeValue(member.Identifier(), clusterAttribute, clusterValue)
	}

	credentialIssuer, err := identity.NewCredentialsIssuer(ids, issuer.Identifier(), "trust_context")
	if err != nil {
		return fail(err)
	}

	tcpOpts := tcp.NewListenerOptions()
	scOpts := securechannel.NewListenerOptions().AsConsumer(tcpOpts.SpawnerFlowControlID())
	if _, err := securechannel.CreateListener(node, ids, issuer.Identifier(), secureIssuerAddress, scOpts); err != nil {
		return fail(err)
	}

	node.FlowControls().AddConsumer(issuerAddress, scOpts.SpawnerFlowControlID())
	allowKnown := identity.NewIdentityIDAccessControl(known...)
	if err := node.StartWorker(issuerAddress, credentialIssuer, core.WithIncomingAccessControl(allowKnown)); err != nil {
		return fail(err)
	}

	listener, err := transport.Listen(ctx, opts.IssuerListen, tcpOpts)
	if err != nil {
		return fail(err)
	}
	p.Println(display.OnBrightPurple, "🔒 issuer started")
	return node, listener.Addr(), nil
}

// fetchCredential gets a credential for self from the issuer at
// issuerAddr and checks that the issuer signed it. It returns the
// credential and the issuer's identity as imported into ids.
func fetchCredential(ctx context.Context, node *core.Node, transport *tcp.Transport, ids *identity.Identities,
	self identity.Identifier, issuerAddr string) (*identity.Credential, *identity.Identity, error) {
	conn, err := transport.Connect(ctx, issuerAddr, tcp.NewConnectionOptions())
	if err != nil {
		return nil, nil, err
	}
	channel, err := securechannel.Create(ctx, node, ids, self, core.RouteOf(conn.SenderAddress(), secureIssuerAddress), securechannel.NewOptions())
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = channel.Close() }()

	client := identity.NewCredentialsIssuerClient(node, core.RouteOf(channel.EncryptorAddress(), issuerAddress))
	cred, err := client.Credential(ctx)
	if err != nil {
		return nil, nil, err
	}

	issuerPublic, err := publicIdentity(issuerSecret)
	if err != nil {
		return nil, nil, err
	}
	issuer, err := ids.ImportIdentityHex(issuerPublic.Export())
	if err != nil {
		return nil, nil, err
	}
	if err := ids.Credentials().VerifyCredential(self, []*identity.Identity{issuer}, cred); err != nil {
		return nil, nil, err
	}
	return cred, issuer, nil
}

func startServer(ctx context.Context, opts Options, issuerAddr string) (*core.Node, string, error) {
	p := opts.Printer
	p.Title("Create a node that verifies credentials against the issuer, runs a tcp listener on 4000, secure channel listener, and echoer worker → wait for messages until stopped", display.TitleLight)

	node, transport, err := newTransportNode("server", opts)
	if err != nil {
		return nil, "", err
	}
	fail := func(err error) (*core.Node, string, error) {
		return nil, "", joinStop(ctx, err, node)
	}

	ids := identity.NewIdentities()
	server, err := ids.IdentityFromSecret(serverSecret)
	if err != nil {
		return fail(err)
	}

	cred, issuer, err := fetchCredential(ctx, node, transport, ids, server.Identifier(), issuerAddr)
	if err != nil {
		return fail(err)
	}
	p.Println(display.OnBrightBlue, fmt.Sprintf("❓ Retrieving credential from issuer:\n%s", cred))
	p.Println(display.OnBrightBlue, fmt.Sprintf("🔒✅ Credential verified as signed by the issuer:\n%s", cred))

	trust := identity.NewTrustContext(trustContextID, identity.NewAuthorityService(ids, issuer))
	p.Println(display.OnBrightBlue, fmt.Sprintf("🔒✅ Starting a trust context: \n%s", trust.ID()))

	tcpOpts := tcp.NewListenerOptions()
	scOpts := securechannel.NewListenerOptions().
		WithTrustContext(trust).
		WithCredential(cred).
		AsConsumer(tcpOpts.SpawnerFlowControlID())

	node.FlowControls().AddConsumer(echoerAddress, scOpts.SpawnerFlowControlID())
	allowProduction := identity.NewAbacAccessControl(ids.Repository(), clusterAttribute, clusterValue)
	if err := node.StartWorker(echoerAddress, &workers.Echoer{Printer: p}, core.WithIncomingAccessControl(allowProduction)); err != nil {
		return fail(err)
	}
	p.Println(display.OnBrightBlue, "🔒🪞 start echoer worker that only accepts requests from identities that have authenticated credentials issued by the above credential issuer, and have the right attributes")

	if _, err := securechannel.CreateListener(node, ids, server.Identifier(), secureServerAddress, scOpts); err != nil {
		return fail(err)
	}
	p.Println(display.OnBrightBlue, "🔒🎙️ create secure channel listener that only allows channels w/ auth ids")

	listener, err := transport.Listen(ctx, opts.ResponderListen, tcpOpts)
	if err != nil {
		return fail(err)
	}
	p.Println(display.OnBrightBlue, fmt.Sprintf("🔒🖥️ server started on %s", listener.Addr()))
	return node, listener.Addr(), nil
}

func runClient(ctx context.Context, opts Options, issuerAddr, serverAddr string) (err error) {
	p := opts.Printer
	p.Title("Create a node that is the client w/ identity known by issuer, connect to 5000 → stop", display.TitleLight)

	node, transport, err := newTransportNode("client", opts)
	if err != nil {
		return err
	}
	defer func() { err = joinStop(ctx, err, node) }()

	ids := identity.NewIdentities()
	client, err := ids.IdentityFromSecret(clientSecret)
	if err != nil {
		return err
	}

	cred, issuer, err := fetchCredential(ctx, node, transport, ids, client.Identifier(), issuerAddr)
	if err != nil {
		return err
	}
	p.Println(display.OnBrightBlue, fmt.Sprintf("❓ Retrieving credential from issuer:\n%s", cred))
	p.Println(display.OnBrightBlack, "Verify that the received credential is signed by the issuer")

	trust := identity.NewTrustContext(trustContextID, identity.NewAuthorityService(ids, issuer))
	p.Println(display.OnBrightBlack, "Create a trust context (needed to verify the credential)")

	conn, err := transport.Connect(ctx, serverAddr, tcp.NewConnectionOptions())
	if err != nil {
		return err
	}
	channelOpts := securechannel.NewOptions().WithTrustContext(trust).WithCredential(cred)
	channel, err := securechannel.Create(ctx, node, ids, client.Identifier(), core.RouteOf(conn.SenderAddress(), secureServerAddress), channelOpts)
	if err != nil {
		return err
	}
	p.Println(display.OnBrightBlack, "Create a secure channel to echoers")

	route := core.RouteOf(channel.EncryptorAddress(), echoerAddress)
	reply, err := node.SendAndReceive(ctx, route, Message)
	if err != nil {
		return err
	}
	p.Println(display.OnBrightBlack, fmt.Sprintf("App Sent: '%s', via route: '%s', Received: '%s'", Message, route, reply))
	return nil
}
