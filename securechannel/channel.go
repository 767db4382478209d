// Package securechannel establishes mutually authenticated, encrypted
// channels between two identities over any route.
package securechannel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/crypt"
	"github.com/najoast/hellonode/identity"
)

// Channel is one end of an established secure channel. Messages routed
// through its encryptor address are delivered to the route that follows it
// on the other node.
type Channel struct {
	node *core.Node
	role role

	encryptor core.Address
	decryptor core.Address
	// internal is the producer address decrypted messages are routed from.
	internal core.Address
	flowID   core.FlowControlID
	spawner  core.FlowControlID

	// set once when the handshake completes
	remote core.Route
	peer   identity.Identifier
	sealer *crypt.Sealer

	closeOnce sync.Once
}

func newChannel(node *core.Node, r role, spawner core.FlowControlID) *Channel {
	return &Channel{
		node:      node,
		role:      r,
		encryptor: core.RandomAddress("sc_encryptor"),
		decryptor: core.RandomAddress("sc_decryptor"),
		internal:  core.RandomAddress("sc_internal"),
		flowID:    node.FlowControls().NewID(),
		spawner:   spawner,
	}
}

// EncryptorAddress is the local hop that sends through the channel.
func (c *Channel) EncryptorAddress() core.Address { return c.encryptor }

// DecryptorAddress is where the remote end sends encrypted frames.
func (c *Channel) DecryptorAddress() core.Address { return c.decryptor }

// PeerIdentifier is the authenticated identifier of the other end.
func (c *Channel) PeerIdentifier() identity.Identifier { return c.peer }

// FlowControlID is the flow of messages decrypted by the channel.
func (c *Channel) FlowControlID() core.FlowControlID { return c.flowID }

// String returns the encryptor address.
func (c *Channel) String() string { return c.encryptor.String() }

// Close stops both workers of the channel.
func (c *Channel) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		for _, addr := range []core.Address{c.encryptor, c.decryptor} {
			if err := c.node.StopWorker(addr); err != nil && !errors.Is(err, core.ErrUnknownAddress) {
				errs = append(errs, err)
			}
		}
		c.node.FlowControls().RemoveAddress(c.internal)
	})
	return errors.Join(errs...)
}

// complete switches the channel to transport mode: it derives the traffic
// ciphers, registers the flow of decrypted messages and starts the
// encryptor.
func (c *Channel) complete(keys *sessionKeys, remote core.Route, peer identity.Identifier) (*crypt.Opener, error) {
	sealKey, openKey := keys.initiatorToResponder, keys.responderToInitiator
	if c.role == responderRole {
		sealKey, openKey = openKey, sealKey
	}
	sealer, err := crypt.NewSealer(sealKey)
	if err != nil {
		return nil, err
	}
	opener, err := crypt.NewOpener(openKey)
	if err != nil {
		return nil, err
	}

	c.sealer = sealer
	c.remote = remote.Clone()
	c.peer = peer

	c.node.FlowControls().AddProducer(c.internal, c.flowID, c.spawner, c.encryptor)
	if err := c.node.StartWorker(c.encryptor, &encryptor{c: c}); err != nil {
		c.node.FlowControls().RemoveAddress(c.internal)
		return nil, err
	}
	return opener, nil
}

// Create performs the handshake with the listener at the end of route and
// returns the established channel.
func Create(ctx context.Context, node *core.Node, identities *identity.Identities, self identity.Identifier, route core.Route, opts Options) (*Channel, error) {
	if route.Len() == 0 {
		return nil, core.ErrEmptyRoute
	}
	if opts.timeout <= 0 {
		opts.timeout = DefaultTimeout
	}
	hs, err := newHandshake(initiatorRole, identities, self, opts.trustContext, opts.credential)
	if err != nil {
		return nil, err
	}
	hello, err := encodeFrame(kindHello, 0, hs.hello())
	if err != nil {
		return nil, err
	}

	ch := newChannel(node, initiatorRole, "")
	d := &decryptor{
		c:       ch,
		hs:      hs,
		done:    make(chan error, 1),
		initial: &outgoing{route: route.Clone(), payload: hello},
	}
	if err := node.StartWorker(ch.decryptor, d); err != nil {
		node.FlowControls().RemoveAddress(ch.decryptor)
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	select {
	case err := <-d.done:
		if err != nil {
			_ = ch.Close()
			return nil, err
		}
		node.Loggers().Infof("Secure channel to %s established at %s", ch.peer, ch.encryptor)
		return ch, nil
	case <-ctx.Done():
		_ = ch.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshake, ctx.Err())
	}
}
