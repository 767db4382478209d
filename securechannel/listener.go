package securechannel

import (
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/identity"
)

// Listener is a worker that accepts secure channels for one identity.
type Listener struct {
	node       *core.Node
	identities *identity.Identities
	self       identity.Identifier
	addr       core.Address
	opts       ListenerOptions
}

// CreateListener starts a listener at addr that authenticates as self.
func CreateListener(node *core.Node, identities *identity.Identities, self identity.Identifier, addr core.Address, opts ListenerOptions) (*Listener, error) {
	if !identities.Vault().Has(self) {
		return nil, fmt.Errorf("%w: %s", identity.ErrNoPrivateKey, self)
	}
	if opts.spawnerID == "" {
		opts.spawnerID = core.NewFlowControlID()
	}

	l := &Listener{
		node:       node,
		identities: identities,
		self:       self,
		addr:       addr,
		opts:       opts,
	}

	flow := node.FlowControls()
	flow.AddSpawner(addr, opts.spawnerID)
	for _, id := range opts.consumes {
		flow.AddConsumer(addr, id)
	}
	if err := node.StartWorker(addr, l); err != nil {
		flow.RemoveAddress(addr)
		return nil, err
	}
	return l, nil
}

// Address returns the listener address.
func (l *Listener) Address() core.Address { return l.addr }

// SpawnerFlowControlID is the id workers consume to accept messages from
// the listener's channels.
func (l *Listener) SpawnerFlowControlID() core.FlowControlID { return l.opts.spawnerID }

// HandleMessage starts the responder side of a channel for every hello.
func (l *Listener) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	f, err := decodeFrame(msg.Payload())
	if err != nil {
		return err
	}
	if f.kind() != kindHello {
		return fmt.Errorf("%w: listener %s got a %s frame", ErrInvalidFrame, l.addr, f.kind())
	}

	hs, err := newHandshake(responderRole, l.identities, l.self, l.opts.trustContext, l.opts.credential)
	if err != nil {
		return err
	}
	data, err := hs.respond(f.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	payload, err := encodeFrame(kindResponse, 0, data)
	if err != nil {
		return err
	}

	ch := newChannel(l.node, responderRole, l.opts.spawnerID)
	flow := ctx.FlowControls()
	for _, id := range l.opts.consumes {
		flow.AddConsumer(ch.decryptor, id)
	}

	d := &decryptor{
		c:       ch,
		hs:      hs,
		initial: &outgoing{route: msg.ReturnRoute(), payload: payload},
	}
	if err := l.node.StartWorker(ch.decryptor, d); err != nil {
		flow.RemoveAddress(ch.decryptor)
		return err
	}
	ctx.Loggers().Debugf("Listener %s started handshake at %s", l.addr, ch.decryptor)
	return nil
}
