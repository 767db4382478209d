// Package tcp carries routed messages between nodes over TCP.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/najoast/hellonode/core"
)

const defaultWriteTimeout = 30 * time.Second

// Transport owns a node's TCP listeners and connections. It is registered
// as the node's router for TCP addresses: a hop like 1#host:port is
// replaced by the sender address of a connection to host:port, dialing one
// if needed.
type Transport struct {
	node    *core.Node
	loggers ldlog.Loggers
	metrics *metrics

	mu        sync.Mutex
	listeners []*Listener
	outgoing  map[string]*Connection
	all       map[*Connection]struct{}

	// Lifetime of listeners and receive loops
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopped int32
}

// NewTransport creates a transport and registers it on node.
func NewTransport(node *core.Node) (*Transport, error) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		node:     node,
		loggers:  node.Loggers(),
		metrics:  newMetrics(node.Registry()),
		outgoing: make(map[string]*Connection),
		all:      make(map[*Connection]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	if err := node.RegisterTransport(core.TCPTransport, t); err != nil {
		cancel()
		return nil, err
	}
	return t, nil
}

func (t *Transport) isStopped() bool {
	return atomic.LoadInt32(&t.stopped) != 0
}

// Listen binds bindAddr and accepts connections until the transport stops.
func (t *Transport) Listen(ctx context.Context, bindAddr string, opts ListenerOptions) (*Listener, error) {
	if t.isStopped() {
		return nil, ErrTransportStopped
	}
	if opts.flowControlID == "" {
		opts = NewListenerOptions()
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", bindAddr)
	if err != nil {
		return nil, &Error{Op: "listen", Addr: bindAddr, Err: err}
	}

	l := &Listener{
		t:       t,
		ln:      ln,
		address: core.RandomAddress("tcp_listener"),
		flowID:  opts.flowControlID,
	}
	t.node.FlowControls().AddSpawner(l.address, l.flowID)

	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()

	t.wg.Add(1)
	go l.acceptLoop()

	t.loggers.Infof("Listening for TCP connections on %s", l.Addr())
	return l, nil
}

// Connect dials peer, retrying with the options' backoff.
func (t *Transport) Connect(ctx context.Context, peer string, opts ConnectionOptions) (*Connection, error) {
	if t.isStopped() {
		return nil, ErrTransportStopped
	}
	if opts.flowControlID == "" {
		opts.flowControlID = core.NewFlowControlID()
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = DefaultBackoff()
	}

	var conn net.Conn
	err := backoff.Do(ctx, func(attempt int) error {
		d := net.Dialer{Timeout: opts.Timeout}
		c, err := d.DialContext(ctx, "tcp", peer)
		if err != nil {
			t.loggers.Debugf("Connection attempt %d to %s failed: %s", attempt, peer, err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "dial", Addr: peer, Err: err}
	}

	c := t.newConnection(conn, peer, opts.flowControlID, true)
	if err := t.track(c, ""); err != nil {
		_ = conn.Close()
		return nil, err
	}

	t.loggers.Debugf("Connected to %s as %s", peer, c.sender)
	return c, nil
}

// Resolve implements core.TransportRouter.
func (t *Transport) Resolve(ctx context.Context, addr core.Address) (core.Address, error) {
	if addr.Type != core.TCPTransport {
		return core.Address{}, fmt.Errorf("tcp transport cannot resolve %s", addr)
	}

	t.mu.Lock()
	c, ok := t.outgoing[addr.Value]
	t.mu.Unlock()
	if ok && !c.isClosed() {
		return c.sender, nil
	}

	c, err := t.Connect(ctx, addr.Value, NewConnectionOptions())
	if err != nil {
		return core.Address{}, err
	}
	return c.sender, nil
}

// Connections describes the open connections ordered by peer.
func (t *Transport) Connections() []ConnectionInfo {
	t.mu.Lock()
	out := make([]ConnectionInfo, 0, len(t.all))
	for c := range t.all {
		out = append(out, c.Info())
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}

// Stop closes every listener and connection and waits for their goroutines.
func (t *Transport) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.stopped, 0, 1) {
		return nil
	}
	t.cancel()

	t.mu.Lock()
	for _, l := range t.listeners {
		_ = l.Close()
	}
	for c := range t.all {
		_ = c.Close()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tcp transport did not stop: %w", ctx.Err())
	}
}

func (t *Transport) newConnection(conn net.Conn, peer string, flowID core.FlowControlID, outgoing bool) *Connection {
	return &Connection{
		t:            t,
		conn:         conn,
		peer:         peer,
		outgoing:     outgoing,
		sender:       core.RandomAddress("tcp_sender"),
		receiver:     core.RandomAddress("tcp_receiver"),
		flowID:       flowID,
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
}

// track registers c with the transport and starts it.
func (t *Transport) track(c *Connection, spawner core.FlowControlID) error {
	t.mu.Lock()
	if t.isStopped() {
		t.mu.Unlock()
		return ErrTransportStopped
	}
	t.all[c] = struct{}{}
	if c.outgoing {
		t.outgoing[c.peer] = c
	}
	t.mu.Unlock()

	if err := c.start(spawner); err != nil {
		t.forget(c)
		return err
	}
	t.metrics.connections.Inc()
	return nil
}

func (t *Transport) forget(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.all, c)
	if t.outgoing[c.peer] == c {
		delete(t.outgoing, c.peer)
	}
}
