package demo

import (
	"context"
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/workers"
)

const nodeDiagram = `
┌──────────────────────┐
│  Node 1              │
├──────────────────────┤
│  ┌────────────────┐  │
│  │ Address:       │  │
│  │ 'app'          │  │
│  └────────────────┘  │
└──────────────────────┘
`

// RunNode creates a node and stops it right away.
func RunNode(ctx context.Context, opts Options) error {
	opts.Printer.Title("Run a node & stop it right away", display.TitleLight)
	opts.Printer.Println(display.OnBrightBlack, nodeDiagram)

	node, err := newNode("node", opts)
	if err != nil {
		return err
	}
	return node.Stop(ctx)
}

// RunWorker starts an echoer, sends it a message from the app address and
// prints the reply.
func RunWorker(ctx context.Context, opts Options) (err error) {
	p := opts.Printer
	p.Title("Run a node 'app' & 'echoer' worker → send a message → stop the node", display.TitleWarm)

	node, err := newNode("worker", opts)
	if err != nil {
		return err
	}
	defer func() { err = joinStop(ctx, err, node) }()

	if err := node.StartWorker(echoerAddress, &workers.Echoer{Printer: p}); err != nil {
		return err
	}

	p.Println(display.OnBrightBlack, fmt.Sprintf("App Sending: '%s'", p.Sprint(display.Red, Message)))
	if err := node.Send(ctx, core.RouteOf(echoerAddress), Message); err != nil {
		return err
	}

	reply, err := node.Receive(ctx)
	if err != nil {
		return err
	}
	p.Println(display.OnBrightBlack, fmt.Sprintf("App Received: '%s'", p.Sprint(display.Green, reply)))
	return nil
}

// RunRouting routes a message to the echoer through the hopper h1.
func RunRouting(ctx context.Context, opts Options) error {
	return runHops(ctx, opts,
		"Run a node w/ 'app', 'echoer' and 'h1' workers → send a message over a hop -> stop the node",
		"h1")
}

// RunRoutingManyHops routes a message to the echoer through h1, h2 and h3.
func RunRoutingManyHops(ctx context.Context, opts Options) error {
	return runHops(ctx, opts,
		"Run a node w/ 'app', 'echoer' and 'h1', 'h2', 'h3' workers → send a message over 3 hops -> stop the node",
		"h1", "h2", "h3")
}

func runHops(ctx context.Context, opts Options, title string, hops ...string) (err error) {
	p := opts.Printer
	p.Title(title, display.TitleLight)

	node, err := newNode("routing", opts)
	if err != nil {
		return err
	}
	defer func() { err = joinStop(ctx, err, node) }()

	if err := node.StartWorker(echoerAddress, &workers.Echoer{Printer: p}); err != nil {
		return err
	}
	route := make(core.Route, 0, len(hops)+1)
	for _, h := range hops {
		addr := core.LocalAddress(h)
		if err := node.StartWorker(addr, &workers.Hopper{Printer: p}); err != nil {
			return err
		}
		route = append(route, addr)
	}
	route = append(route, echoerAddress)

	p.Println(display.Plain, fmt.Sprintf("App Sending: '%s', over route: '%s'",
		p.Sprint(display.Red, Message), p.Sprint(display.Green, route.String())))
	if err := node.Send(ctx, route, Message); err != nil {
		return err
	}

	reply, err := node.Receive(ctx)
	if err != nil {
		return err
	}
	p.Println(display.Plain, fmt.Sprintf("App Received: %s", reply))
	return nil
}

// joinStop stops node and keeps the first error.
func joinStop(ctx context.Context, err error, nodes ...*core.Node) error {
	stopErr := stopNodes(context.WithoutCancel(ctx), nodes...)
	if err != nil {
		return err
	}
	return stopErr
}
