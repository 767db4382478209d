package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/prometheus/client_golang/prometheus"
)

// AppAddress is the address of the node's built-in inbox. Messages sent with
// Node.Send return to it and Node.Receive reads from it.
var AppAddress = LocalAddress("app")

// Node hosts workers and routes messages between them.
type Node struct {
	name        string
	loggers     ldlog.Loggers
	mailboxSize int
	registry    *prometheus.Registry
	metrics     *metrics

	flow   *FlowControls
	router *router
	app    *inbox

	// Node lifetime; every worker context derives from it
	ctx    context.Context
	cancel context.CancelFunc

	stopped  int32
	stopOnce sync.Once
	stopErr  error
}

// NodeOption customizes a Node.
type NodeOption func(*Node)

// WithLoggers sets the loggers used by the node and its workers.
func WithLoggers(loggers ldlog.Loggers) NodeOption {
	return func(n *Node) { n.loggers = loggers }
}

// WithMailboxSize sets the default mailbox capacity of workers.
func WithMailboxSize(size int) NodeOption {
	return func(n *Node) {
		if size > 0 {
			n.mailboxSize = size
		}
	}
}

// WithRegistry makes the node register its metrics with reg.
func WithRegistry(reg *prometheus.Registry) NodeOption {
	return func(n *Node) {
		if reg != nil {
			n.registry = reg
		}
	}
}

// WithName names the node in logs and in the admin endpoint.
func WithName(name string) NodeOption {
	return func(n *Node) { n.name = name }
}

// NewNode creates a node and starts its app inbox.
func NewNode(opts ...NodeOption) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		loggers:     ldlog.NewDisabledLoggers(),
		mailboxSize: DefaultMailboxSize,
		flow:        NewFlowControls(),
		router:      newRouter(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.name == "" {
		n.name = RandomAddress("node").Value
	}
	if n.registry == nil {
		n.registry = prometheus.NewRegistry()
	}
	n.metrics = newMetrics(n.registry)

	n.app = newInbox(n.mailboxSize)
	if err := n.StartWorker(AppAddress, n.app); err != nil {
		cancel()
		return nil, err
	}

	n.loggers.Debugf("Node %s started", n.name)
	return n, nil
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Loggers returns the node's loggers.
func (n *Node) Loggers() ldlog.Loggers { return n.loggers }

// Registry returns the registry holding the node's metrics.
func (n *Node) Registry() *prometheus.Registry { return n.registry }

// FlowControls returns the node's flow control registry.
func (n *Node) FlowControls() *FlowControls { return n.flow }

// Done is closed once the node has stopped.
func (n *Node) Done() <-chan struct{} { return n.ctx.Done() }

func (n *Node) isStopped() bool {
	return atomic.LoadInt32(&n.stopped) != 0
}

// StartWorker registers w at addr and starts its message loop.
func (n *Node) StartWorker(addr Address, w Worker, opts ...WorkerOption) error {
	if n.isStopped() {
		return ErrNodeStopped
	}
	if !addr.IsLocal() || addr.IsZero() {
		return fmt.Errorf("invalid worker address %s", addr)
	}

	var o workerOptions
	for _, opt := range opts {
		opt(&o)
	}

	rn := newRunner(n, addr, w, o)
	if err := n.router.register(rn); err != nil {
		rn.cancel()
		return err
	}
	if err := rn.start(); err != nil {
		n.router.unregister(addr)
		return err
	}

	n.metrics.workersStarted.Inc()
	n.loggers.Debugf("Started worker %s", addr)
	return nil
}

// StartWorkerWithAccessControl starts w guarded by the given access controls.
func (n *Node) StartWorkerWithAccessControl(addr Address, w Worker, incoming IncomingAccessControl, outgoing OutgoingAccessControl) error {
	return n.StartWorker(addr, w, WithIncomingAccessControl(incoming), WithOutgoingAccessControl(outgoing))
}

// StopWorker stops the worker at addr and forgets its flow control
// registrations.
func (n *Node) StopWorker(addr Address) error {
	rn, ok := n.router.unregister(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	n.flow.RemoveAddress(addr)
	n.loggers.Debugf("Stopping worker %s", addr)
	return rn.stop()
}

// HasWorker reports whether a worker is registered at addr.
func (n *Node) HasWorker(addr Address) bool {
	_, ok := n.router.lookup(addr)
	return ok
}

// Workers returns the stats of every registered worker.
func (n *Node) Workers() []WorkerStats {
	runners := n.router.list()
	out := make([]WorkerStats, 0, len(runners))
	for _, rn := range runners {
		out = append(out, rn.Stats())
	}
	return out
}

// Worker returns the stats of the worker at addr.
func (n *Node) Worker(addr Address) (WorkerStats, bool) {
	rn, ok := n.router.lookup(addr)
	if !ok {
		return WorkerStats{}, false
	}
	return rn.Stats(), true
}

// RegisterTransport makes tr responsible for hops of type t.
func (n *Node) RegisterTransport(t TransportType, tr TransportRouter) error {
	return n.router.registerTransport(t, tr)
}

// Send routes body to route from the app address.
func (n *Node) Send(ctx context.Context, route Route, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := NewLocalMessage(NewTransportMessage(route, RouteOf(AppAddress), EncodeBody(body)), nil)
	return n.RouteFrom(ctx, msg, AppAddress)
}

// Receive waits for the next message delivered to the app address and
// returns its body.
func (n *Node) Receive(ctx context.Context) (string, error) {
	msg, err := n.ReceiveMessage(ctx)
	if err != nil {
		return "", err
	}
	return msg.Body()
}

// ReceiveMessage waits for the next message delivered to the app address.
func (n *Node) ReceiveMessage(ctx context.Context) (*Routed, error) {
	return n.app.receive(ctx, n.ctx.Done())
}

// Request sends payload to route from a temporary address and waits for a
// single reply to it.
func (n *Node) Request(ctx context.Context, route Route, payload []byte) (*Routed, error) {
	addr := RandomAddress("request")
	in := newInbox(1)
	if err := n.StartWorker(addr, in); err != nil {
		return nil, err
	}
	defer func() {
		if err := n.StopWorker(addr); err != nil {
			n.loggers.Debugf("Failed to stop %s: %s", addr, err)
		}
	}()

	msg := NewLocalMessage(NewTransportMessage(route, RouteOf(addr), payload), nil)
	if err := n.RouteFrom(ctx, msg, addr); err != nil {
		return nil, err
	}
	return in.receive(ctx, n.ctx.Done())
}

// SendAndReceive sends body to route from a temporary address and returns
// the body of the reply.
func (n *Node) SendAndReceive(ctx context.Context, route Route, body string) (string, error) {
	reply, err := n.Request(ctx, route, EncodeBody(body))
	if err != nil {
		return "", err
	}
	return reply.Body()
}

// RouteFrom delivers msg to the first hop of its onward route on behalf of
// src. Transports and channel workers use it to inject messages they
// receive.
func (n *Node) RouteFrom(ctx context.Context, msg *LocalMessage, src Address) error {
	if n.isStopped() {
		return ErrNodeStopped
	}

	next, err := msg.Transport.OnwardRoute.Next()
	if err != nil {
		n.metrics.dropped("empty_route")
		n.loggers.Warnf("Dropped message from %s: %s", src, err)
		return err
	}
	hopType := next.Type

	if !next.IsLocal() {
		tr, ok := n.router.transport(next.Type)
		if !ok {
			n.metrics.dropped("no_transport")
			return fmt.Errorf("%w: %s", ErrNoTransport, next)
		}
		resolved, err := tr.Resolve(ctx, next)
		if err != nil {
			n.metrics.dropped("transport")
			return fmt.Errorf("failed to resolve %s: %w", next, err)
		}
		onward := msg.Transport.OnwardRoute.Clone()
		onward[0] = resolved
		msg.Transport.OnwardRoute = onward
		next = resolved
	}

	// Sending through a producer's additional address makes the sender a
	// consumer of that producer, so replies come back.
	if info, ok := n.flow.FindWithProducerAddress(next); ok && info.Address != next {
		n.flow.AddConsumer(src, info.ID)
	}

	rn, ok := n.router.lookup(next)
	if !ok {
		n.metrics.dropped("unknown_address")
		n.loggers.Warnf("Dropped message from %s: no worker at %s", src, next)
		return fmt.Errorf("%w: %s", ErrUnknownAddress, next)
	}

	if !n.flow.IsAllowed(src, next) {
		n.metrics.dropped("flow_control")
		n.loggers.Warnf("Message from %s to %s rejected by flow control", src, next)
		return fmt.Errorf("%w: %s -> %s", ErrNotAllowed, src, next)
	}

	if err := rn.deliver(envelope{msg: msg, src: src}); err != nil {
		reason := "mailbox_full"
		if errors.Is(err, ErrWorkerStopped) {
			reason = "stopped"
		}
		n.metrics.dropped(reason)
		n.loggers.Warnf("Dropped message from %s: %s", src, err)
		return err
	}

	n.metrics.routed(hopType)
	return nil
}

// Stop stops every worker, then every transport. It is safe to call more
// than once.
func (n *Node) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		atomic.StoreInt32(&n.stopped, 1)

		var errs []error
		for _, rn := range n.router.list() {
			// A concurrent StopWorker may have taken it already.
			if _, ok := n.router.unregister(rn.addr); !ok {
				continue
			}
			n.flow.RemoveAddress(rn.addr)
			if err := rn.stop(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, tr := range n.router.transportList() {
			if err := tr.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		n.cancel()
		n.stopErr = errors.Join(errs...)
		n.loggers.Debugf("Node %s stopped", n.name)
	})
	return n.stopErr
}

// inbox is a worker that queues what it receives for a waiting caller.
type inbox struct {
	ch chan *Routed
}

func newInbox(size int) *inbox {
	return &inbox{ch: make(chan *Routed, size)}
}

func (i *inbox) HandleMessage(ctx *Context, msg *Routed) error {
	select {
	case i.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *inbox) receive(ctx context.Context, done <-chan struct{}) (*Routed, error) {
	select {
	case msg := <-i.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, ErrNodeStopped
	}
}
