package tcp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/hellonode/core"
)

const testTimeout = 3 * time.Second

var echo = core.WorkerFunc(func(ctx *core.Context, msg *core.Routed) error {
	body, err := msg.Body()
	if err != nil {
		return err
	}
	return ctx.Send(msg.ReturnRoute(), "echo: "+body)
})

type testNode struct {
	node      *core.Node
	transport *Transport
	mockLog   *ldlogtest.MockLog
}

func newTestNode(t *testing.T) testNode {
	t.Helper()
	mockLog := ldlogtest.NewMockLog()
	n, err := core.NewNode(core.WithLoggers(mockLog.Loggers))
	require.NoError(t, err)
	tr, err := NewTransport(n)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return testNode{node: n, transport: tr, mockLog: mockLog}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// startResponder listens on a free port and runs the echo worker as a
// consumer of the listener when consume is set.
func startResponder(t *testing.T, consume bool) (testNode, *Listener) {
	t.Helper()
	responder := newTestNode(t)
	l, err := responder.transport.Listen(testContext(t), "127.0.0.1:0", NewListenerOptions())
	require.NoError(t, err)

	require.NoError(t, responder.node.StartWorker(core.LocalAddress("echoer"), echo))
	if consume {
		responder.node.FlowControls().AddConsumer(core.LocalAddress("echoer"), l.FlowControlID())
	}
	return responder, l
}

func TestRoutingOverTransport(t *testing.T) {
	_, l := startResponder(t, true)
	initiator := newTestNode(t)
	ctx := testContext(t)

	route := core.RouteOf(core.TCPAddress(l.Addr()), core.LocalAddress("echoer"))
	reply, err := initiator.node.SendAndReceive(ctx, route, "Hello Ockam!")
	require.NoError(t, err)
	assert.Equal(t, "echo: Hello Ockam!", reply)

	reply, err = initiator.node.SendAndReceive(ctx, route, "again")
	require.NoError(t, err)
	assert.Equal(t, "echo: again", reply)

	conns := initiator.transport.Connections()
	require.Len(t, conns, 1)
	assert.True(t, conns[0].Outgoing)
	assert.Equal(t, l.Addr(), conns[0].Peer)
}

func TestRoutingThroughExplicitConnection(t *testing.T) {
	_, l := startResponder(t, true)
	initiator := newTestNode(t)
	ctx := testContext(t)

	conn, err := initiator.transport.Connect(ctx, l.Addr(), NewConnectionOptions())
	require.NoError(t, err)
	assert.Equal(t, conn.SenderAddress().String(), conn.String())

	reply, err := initiator.node.Request(ctx, core.RouteOf(conn.SenderAddress(), core.LocalAddress("echoer")), core.EncodeBody("hi"))
	require.NoError(t, err)

	body, err := reply.Body()
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", body)

	// the reply came back through our side of the connection
	next, err := reply.ReturnRoute().Next()
	require.NoError(t, err)
	assert.Equal(t, conn.SenderAddress(), next)

	info, ok := reply.LocalMessage().FindLocalInfo(InfoType)
	require.True(t, ok)
	assert.Equal(t, l.Addr(), info.(Info).Peer)
}

func TestListenerFlowControlRejectsNonConsumers(t *testing.T) {
	responder, l := startResponder(t, false)
	initiator := newTestNode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := initiator.node.SendAndReceive(ctx, core.RouteOf(core.TCPAddress(l.Addr()), core.LocalAddress("echoer")), "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool {
		return responder.mockLog.HasMessageMatch(ldlog.Warn, "rejected by flow control")
	}, testTimeout, 10*time.Millisecond)
}

func TestConnectFailure(t *testing.T) {
	n := newTestNode(t)

	// grab a free port and close it again
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	opts := NewConnectionOptions()
	opts.Backoff = &Backoff{InitialDelay: time.Millisecond, MaxAttempts: 2}
	_, err = n.transport.Connect(testContext(t), addr, opts)

	var tcpErr *Error
	require.True(t, errors.As(err, &tcpErr))
	assert.Equal(t, "dial", tcpErr.Op)
	assert.Equal(t, addr, tcpErr.Addr)
}

func TestStoppingInitiatorClosesResponderConnection(t *testing.T) {
	responder, l := startResponder(t, true)
	initiator := newTestNode(t)
	ctx := testContext(t)

	_, err := initiator.node.SendAndReceive(ctx, core.RouteOf(core.TCPAddress(l.Addr()), core.LocalAddress("echoer")), "hi")
	require.NoError(t, err)
	require.Len(t, responder.transport.Connections(), 1)

	require.NoError(t, initiator.node.Stop(ctx))
	assert.Empty(t, initiator.transport.Connections())
	assert.Eventually(t, func() bool {
		return len(responder.transport.Connections()) == 0
	}, testTimeout, 10*time.Millisecond)

	_, err = initiator.transport.Connect(ctx, l.Addr(), NewConnectionOptions())
	assert.ErrorIs(t, err, ErrTransportStopped)
}

func TestNewTransportRegistersOnce(t *testing.T) {
	n := newTestNode(t)
	_, err := NewTransport(n.node)
	assert.Error(t, err)
}
