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

var (
	bobListenerAddress = core.LocalAddress("bob_listener")
	forwardToBob       = core.LocalAddress("forward_to_bob")
)

// RunIdentity creates an identity for alice and prints it.
func RunIdentity(ctx context.Context, opts Options) (err error) {
	node, err := newNode("identity", opts)
	if err != nil {
		return err
	}
	defer func() { err = joinStop(ctx, err, node) }()

	alice, err := identity.NewIdentities().CreateIdentity()
	if err != nil {
		return err
	}
	opts.Printer.Println(display.OnBrightBlack, fmt.Sprintf("Identity identifier for Alice: \n%s", alice))
	return nil
}

// RunSecureChannelOverTwoTransportHops opens a secure channel from alice
// to bob's listener through a middle node that only forwards TCP traffic,
// then echoes a message through the channel.
func RunSecureChannelOverTwoTransportHops(ctx context.Context, opts Options) error {
	p := opts.Printer

	p.Title("Create a node that runs tcp listener on 4000, a secure channel listener (for `bob`) to an echoer worker → wait for messages until stopped", display.TitleWarm)
	responder, listener, err := startSecureResponder(ctx, opts)
	if err != nil {
		return err
	}

	p.Title("Create a middle (forwarder) node that listens for TCP on 3000 and forwards to 4000 (no secure channel) → wait for messages until stopped", display.TitleWarm)
	middle, middleListener, err := startMiddle(ctx, opts, listener.Addr(), forwardToBob)
	if err != nil {
		return joinStop(ctx, err, responder)
	}

	p.Title("Create a node that creates an end-to-end encrypted secure channel (from `alice`), over two TCP transport hops, and routes a message (to `bob`), to a worker on a different node → stop", display.TitleWarm)
	err = runSecureInitiator(ctx, opts, middleListener.Addr())
	err = joinStop(ctx, err, responder, middle)

	p.Println(display.Red, "App finished, stopping responder & middle nodes")
	return err
}

// startSecureResponder runs bob's secure channel listener behind a TCP
// listener, and an echoer reachable through bob's channels.
func startSecureResponder(ctx context.Context, opts Options) (*core.Node, *tcp.Listener, error) {
	node, transport, err := newTransportNode("responder", opts)
	if err != nil {
		return nil, nil, err
	}
	if err := node.StartWorker(echoerAddress, &workers.Echoer{Printer: opts.Printer}); err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}

	ids := identity.NewIdentities()
	bob, err := ids.CreateIdentity()
	if err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}

	listener, err := transport.Listen(ctx, opts.ResponderListen, tcp.NewListenerOptions())
	if err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}

	scOpts := securechannel.NewListenerOptions().AsConsumer(listener.FlowControlID())
	scListener, err := securechannel.CreateListener(node, ids, bob.Identifier(), bobListenerAddress, scOpts)
	if err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}
	node.FlowControls().AddConsumer(echoerAddress, scListener.SpawnerFlowControlID())
	return node, listener, nil
}

func runSecureInitiator(ctx context.Context, opts Options, peer string) (err error) {
	p := opts.Printer
	node, transport, err := newTransportNode("initiator", opts)
	if err != nil {
		return err
	}
	defer func() { err = joinStop(ctx, err, node) }()

	ids := identity.NewIdentities()
	alice, err := ids.CreateIdentity()
	if err != nil {
		return err
	}

	conn, err := transport.Connect(ctx, peer, tcp.NewConnectionOptions())
	if err != nil {
		return err
	}

	channelRoute := core.RouteOf(conn.SenderAddress(), forwardToBob, bobListenerAddress)
	channel, err := securechannel.Create(ctx, node, ids, alice.Identifier(), channelRoute, securechannel.NewOptions())
	if err != nil {
		return err
	}
	p.Println(display.Plain, fmt.Sprintf("Connected to secure channel listener from 'alice' after performing handshake: %s",
		p.Sprint(display.Green, channelRoute.String())))

	route := core.RouteOf(channel.EncryptorAddress(), echoerAddress)
	reply, err := node.SendAndReceive(ctx, route, Message)
	if err != nil {
		return err
	}
	p.Println(display.OnBrightBlack, fmt.Sprintf("App Sending: '%s', \nover route: '%s', \nand received: '%s'",
		p.Sprint(display.Red, Message), p.Sprint(display.Green, route.String()), p.Sprint(display.Yellow, reply)))
	return nil
}
