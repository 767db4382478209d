package tcp

import (
	"errors"
	"net"

	"github.com/najoast/hellonode/core"
)

// Listener accepts TCP connections. Every accepted connection is a producer
// spawned under the listener's flow control id.
type Listener struct {
	t       *Transport
	ln      net.Listener
	address core.Address
	flowID  core.FlowControlID
}

// Addr returns the bound host:port.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// FlowControlID is the spawner id of the listener.
func (l *Listener) FlowControlID() core.FlowControlID { return l.flowID }

// Close stops accepting connections. Established connections stay open.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func (l *Listener) acceptLoop() {
	defer l.t.wg.Done()
	defer l.t.node.FlowControls().RemoveAddress(l.address)

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.t.loggers.Errorf("Listener %s stopped: %s", l.Addr(), &Error{Op: "accept", Addr: l.Addr(), Err: err})
			}
			return
		}

		c := l.t.newConnection(conn, conn.RemoteAddr().String(), core.NewFlowControlID(), false)
		if err := l.t.track(c, l.flowID); err != nil {
			l.t.loggers.Warnf("Dropping connection from %s: %s", c.peer, err)
			_ = conn.Close()
			continue
		}
		l.t.loggers.Debugf("Accepted connection from %s as %s", c.peer, c.sender)
	}
}
