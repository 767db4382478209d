package demo

import (
	"context"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/tcp"
	"github.com/najoast/hellonode/workers"
)

var forwarderAddress = core.LocalAddress("forward_to_responder")

// RunRoutingOverTransport runs a responder node with an echoer behind a
// TCP listener and an initiator node that sends to it over one connection.
func RunRoutingOverTransport(ctx context.Context, opts Options) error {
	opts.Printer.Title("Create a node that runs tcp listener on 4000 and echoer worker → wait for messages until stopped", display.TitleLight)
	responder, listener, err := startResponder(ctx, opts)
	if err != nil {
		return err
	}

	opts.Printer.Title("Create a node that routes a message, over the TCP transport, to a worker on a different node → stop", display.TitleLight)
	err = runInitiator(ctx, opts, listener.Addr(), echoerAddress)
	err = joinStop(ctx, err, responder)

	opts.Printer.Println(display.Red, "App finished, stopping responder node")
	return err
}

// RunRoutingOverTwoTransportHops adds a middle node between initiator and
// responder that forwards everything it receives to the responder.
func RunRoutingOverTwoTransportHops(ctx context.Context, opts Options) error {
	opts.Printer.Title("Create a node that runs tcp listener on 4000 and echoer worker → wait for messages until stopped", display.TitleWarm)
	responder, listener, err := startResponder(ctx, opts)
	if err != nil {
		return err
	}

	opts.Printer.Title("Create a middle (forwarder) node that listens on 3000 and forwards to 4000 → wait for messages until stopped", display.TitleWarm)
	middle, middleListener, err := startMiddle(ctx, opts, listener.Addr(), forwarderAddress)
	if err != nil {
		return joinStop(ctx, err, responder)
	}

	opts.Printer.Title("Create a node that routes a message, over two TCP transport hops, to a worker on a different node → stop", display.TitleWarm)
	err = runInitiator(ctx, opts, middleListener.Addr(), forwarderAddress, echoerAddress)
	err = joinStop(ctx, err, responder, middle)

	opts.Printer.Println(display.Red, "App finished, stopping responder & middle nodes")
	return err
}

// startResponder runs an echoer that consumes the TCP listener's flow.
func startResponder(ctx context.Context, opts Options) (*core.Node, *tcp.Listener, error) {
	node, transport, err := newTransportNode("responder", opts)
	if err != nil {
		return nil, nil, err
	}
	if err := node.StartWorker(echoerAddress, &workers.Echoer{Printer: opts.Printer}); err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}

	listener, err := transport.Listen(ctx, opts.ResponderListen, tcp.NewListenerOptions())
	if err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}
	node.FlowControls().AddConsumer(echoerAddress, listener.FlowControlID())
	return node, listener, nil
}

// startMiddle connects to peer and runs a forwarder at forwarder that
// consumes its own TCP listener's flow.
func startMiddle(ctx context.Context, opts Options, peer string, forwarder core.Address) (*core.Node, *tcp.Listener, error) {
	node, transport, err := newTransportNode("middle", opts)
	if err != nil {
		return nil, nil, err
	}

	conn, err := transport.Connect(ctx, peer, tcp.NewConnectionOptions())
	if err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}
	w := &workers.Forwarder{Address: conn.SenderAddress(), Printer: opts.Printer}
	if err := node.StartWorker(forwarder, w); err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}

	listener, err := transport.Listen(ctx, opts.MiddleListen, tcp.NewListenerOptions())
	if err != nil {
		return nil, nil, joinStop(ctx, err, node)
	}
	node.FlowControls().AddConsumer(forwarder, listener.FlowControlID())
	return node, listener, nil
}

// runInitiator connects to peer, sends the message over the connection
// followed by hops, prints the exchange and stops.
func runInitiator(ctx context.Context, opts Options, peer string, hops ...core.Address) (err error) {
	node, transport, err := newTransportNode("initiator", opts)
	if err != nil {
		return err
	}
	defer func() { err = joinStop(ctx, err, node) }()

	conn, err := transport.Connect(ctx, peer, tcp.NewConnectionOptions())
	if err != nil {
		return err
	}

	route := append(core.RouteOf(conn.SenderAddress()), hops...)
	reply, err := node.SendAndReceive(ctx, route, Message)
	if err != nil {
		return err
	}
	printExchange(opts.Printer, route, reply)
	return nil
}
