package core

import (
	"context"
	"fmt"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Context is handed to a worker's hooks. It is cancelled when the worker
// stops.
type Context struct {
	context.Context

	node     *Node
	addr     Address
	outgoing OutgoingAccessControl
}

// Address returns the address of the worker.
func (c *Context) Address() Address {
	return c.addr
}

// Node returns the node the worker runs on.
func (c *Context) Node() *Node {
	return c.node
}

// FlowControls returns the node's flow control registry.
func (c *Context) FlowControls() *FlowControls {
	return c.node.flow
}

// Loggers returns the node's loggers.
func (c *Context) Loggers() ldlog.Loggers {
	return c.node.loggers
}

// Send routes body to route with the worker as the return route.
func (c *Context) Send(route Route, body string) error {
	return c.SendBytes(route, EncodeBody(body))
}

// SendBytes routes payload to route with the worker as the return route.
func (c *Context) SendBytes(route Route, payload []byte) error {
	msg := NewLocalMessage(NewTransportMessage(route, RouteOf(c.addr), payload), nil)
	return c.Forward(msg)
}

// Forward routes msg as is, with the worker as the sender.
func (c *Context) Forward(msg *LocalMessage) error {
	if c.outgoing != nil {
		ok, err := c.outgoing.IsAuthorized(c, msg)
		if err != nil {
			return fmt.Errorf("outgoing access control of %s: %w", c.addr, err)
		}
		if !ok {
			c.node.metrics.dropped("access_control")
			c.node.loggers.Warnf("Outgoing message from %s denied by access control", c.addr)
			return fmt.Errorf("%w: outgoing from %s", ErrAccessDenied, c.addr)
		}
	}
	return c.node.RouteFrom(c, msg, c.addr)
}
