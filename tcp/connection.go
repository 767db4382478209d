package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/najoast/hellonode/core"
)

// InfoType is the local info type attached to messages received over TCP.
const InfoType = "tcp"

// Info records which connection a message arrived on.
type Info struct {
	Peer   string
	Sender core.Address
}

// LocalInfoType implements core.LocalInfo.
func (Info) LocalInfoType() string { return InfoType }

// Connection is one TCP connection, accepted or dialed. Messages routed to
// its sender address are written to the socket, and frames read from the
// socket are routed on the node with the connection's receiver as the
// producer.
type Connection struct {
	t        *Transport
	conn     net.Conn
	peer     string
	outgoing bool

	sender   core.Address
	receiver core.Address
	flowID   core.FlowControlID

	writeTimeout time.Duration
	closed       int32
	done         chan struct{}
}

// ConnectionInfo describes a connection for status reports.
type ConnectionInfo struct {
	Peer          string             `json:"peer"`
	Sender        string             `json:"sender"`
	Outgoing      bool               `json:"outgoing"`
	FlowControlID core.FlowControlID `json:"flowControlId"`
}

// SenderAddress is the local address that writes to the connection. Use it
// as a route hop.
func (c *Connection) SenderAddress() core.Address { return c.sender }

// FlowControlID is the flow produced by the connection's receiver.
func (c *Connection) FlowControlID() core.FlowControlID { return c.flowID }

// Peer returns the remote address.
func (c *Connection) Peer() string { return c.peer }

// String returns the sender address.
func (c *Connection) String() string { return c.sender.String() }

// Done is closed when the connection's receive loop has ended.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Info describes the connection.
func (c *Connection) Info() ConnectionInfo {
	return ConnectionInfo{
		Peer:          c.peer,
		Sender:        c.sender.String(),
		Outgoing:      c.outgoing,
		FlowControlID: c.flowID,
	}
}

func (c *Connection) isClosed() bool {
	return atomic.LoadInt32(&c.closed) != 0
}

// Close closes the socket. The receive loop then releases the sender worker.
func (c *Connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.conn.Close()
}

// start registers the connection's flow control and sender worker and begins
// reading.
func (c *Connection) start(spawner core.FlowControlID) error {
	node := c.t.node
	node.FlowControls().AddProducer(c.receiver, c.flowID, spawner, c.sender)

	if err := node.StartWorker(c.sender, &sender{c: c}); err != nil {
		node.FlowControls().RemoveAddress(c.receiver)
		return err
	}

	c.t.wg.Add(1)
	go c.receiveLoop()
	return nil
}

func (c *Connection) receiveLoop() {
	defer c.t.wg.Done()
	defer close(c.done)
	defer c.release()

	node := c.t.node
	for {
		tm, err := ReadFrame(c.conn)
		if err != nil {
			if !c.isClosed() && !errors.Is(err, io.EOF) {
				c.t.loggers.Warnf("Connection to %s failed: %s", c.peer, &Error{Op: "read", Addr: c.peer, Err: err})
			}
			return
		}
		c.t.metrics.frames("in")

		tm.ReturnRoute.Prepend(c.sender)
		msg := core.NewLocalMessage(tm, []core.LocalInfo{Info{Peer: c.peer, Sender: c.sender}})
		if err := node.RouteFrom(c.t.ctx, msg, c.receiver); err != nil {
			if errors.Is(err, core.ErrNodeStopped) {
				return
			}
			c.t.loggers.Debugf("Message from %s not routed: %s", c.peer, err)
		}
	}
}

func (c *Connection) release() {
	_ = c.Close()
	c.t.forget(c)

	node := c.t.node
	node.FlowControls().RemoveAddress(c.receiver)
	if err := node.StopWorker(c.sender); err != nil && !errors.Is(err, core.ErrUnknownAddress) {
		c.t.loggers.Debugf("Failed to stop sender %s: %s", c.sender, err)
	}
	c.t.metrics.connections.Dec()
	c.t.loggers.Debugf("Connection to %s closed", c.peer)
}

// sender is the worker behind a connection's sender address.
type sender struct {
	c *Connection
}

func (s *sender) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	c := s.c
	if c.isClosed() {
		return fmt.Errorf("%w: %s", ErrConnectionClosed, c.peer)
	}

	tm := msg.LocalMessage().Transport
	tm.OnwardRoute.PopFront()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return &Error{Op: "write", Addr: c.peer, Err: err}
		}
	}
	if err := WriteFrame(c.conn, tm); err != nil {
		if !errors.Is(err, ErrFrameTooLarge) {
			// the receive loop notices and cleans up
			_ = c.Close()
		}
		return &Error{Op: "write", Addr: c.peer, Err: err}
	}
	c.t.metrics.frames("out")
	return nil
}
