// Package demo runs the hellonode example scenarios: nodes, workers,
// routing over hops and TCP, secure channels and credential exchange.
package demo

import (
	"context"
	"fmt"
	"sort"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"golang.org/x/sync/errgroup"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
	"github.com/najoast/hellonode/tcp"
)

// Message is what every scenario sends to the echoer.
const Message = "Hello Ockam!"

var echoerAddress = core.LocalAddress("echoer")

// Options configures where scenario nodes listen and where they print.
type Options struct {
	// Listen addresses of the responder, middle and issuer nodes. Use port 0
	// to let the system pick.
	ResponderListen string
	MiddleListen    string
	IssuerListen    string

	Printer *display.Printer
	Loggers ldlog.Loggers
}

// DefaultOptions listens on the ports of the original walkthrough and
// prints to stdout.
func DefaultOptions() Options {
	return Options{
		ResponderListen: "127.0.0.1:4000",
		MiddleListen:    "127.0.0.1:3000",
		IssuerListen:    "127.0.0.1:5000",
		Printer:         display.Stdout(),
		Loggers:         ldlog.NewDisabledLoggers(),
	}
}

// Scenario is one runnable example.
type Scenario func(ctx context.Context, opts Options) error

var scenarios = map[string]Scenario{
	"node":                   RunNode,
	"worker":                 RunWorker,
	"routing":                RunRouting,
	"routing-many-hops":      RunRoutingManyHops,
	"routing-over-transport": RunRoutingOverTransport,
	"routing-over-two-hops":  RunRoutingOverTwoTransportHops,
	"identity":               RunIdentity,
	"secure-channel":         RunSecureChannelOverTwoTransportHops,
	"credential-exchange":    RunCredentialExchange,
}

// Names returns the scenario names in order.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run runs the scenario called name.
func Run(ctx context.Context, name string, opts Options) error {
	s, ok := scenarios[name]
	if !ok {
		return fmt.Errorf("unknown scenario %q", name)
	}
	return s(ctx, opts)
}

func newNode(name string, opts Options) (*core.Node, error) {
	return core.NewNode(core.WithName(name), core.WithLoggers(opts.Loggers))
}

// newTransportNode creates a node with a TCP transport.
func newTransportNode(name string, opts Options) (*core.Node, *tcp.Transport, error) {
	node, err := newNode(name, opts)
	if err != nil {
		return nil, nil, err
	}
	transport, err := tcp.NewTransport(node)
	if err != nil {
		_ = node.Stop(context.Background())
		return nil, nil, err
	}
	return node, transport, nil
}

// stopNodes stops the nodes concurrently. Every node is stopped even when
// one of them fails.
func stopNodes(ctx context.Context, nodes ...*core.Node) error {
	var g errgroup.Group
	for _, n := range nodes {
		n := n
		if n == nil {
			continue
		}
		g.Go(func() error { return n.Stop(ctx) })
	}
	return g.Wait()
}

// printExchange prints a request sent over route and its reply.
func printExchange(p *display.Printer, route core.Route, reply string) {
	p.Println(display.OnBrightBlack, fmt.Sprintf("App Sending: '%s', over route: '%s', and received: '%s'",
		p.Sprint(display.Red, Message), p.Sprint(display.Green, route.String()), p.Sprint(display.Yellow, reply)))
}
