package securechannel

import (
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/crypt"
	"github.com/najoast/hellonode/identity"
)

type outgoing struct {
	route   core.Route
	payload []byte
}

// decryptor receives the frames the remote end sends. While the handshake
// runs it advances it, afterwards it opens data frames and routes their
// messages on the node.
type decryptor struct {
	c *Channel

	hs     *handshake
	failed bool
	opener *crypt.Opener

	// initial is sent when the worker starts
	initial *outgoing
	// done reports the initiator's handshake result
	done chan error
}

func (d *decryptor) Initialize(ctx *core.Context) error {
	if d.initial == nil {
		return nil
	}
	return ctx.SendBytes(d.initial.route, d.initial.payload)
}

func (d *decryptor) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	if d.failed {
		return fmt.Errorf("%w: channel %s is unusable", ErrHandshake, d.c.decryptor)
	}

	f, err := decodeFrame(msg.Payload())
	if err != nil {
		return err
	}
	if d.hs != nil {
		if err := d.handshake(ctx, msg, f); err != nil {
			d.fail(ctx, err)
			return err
		}
		return nil
	}
	if f.kind() != kindData {
		return fmt.Errorf("%w: unexpected %s frame", ErrInvalidFrame, f.kind())
	}
	return d.decrypt(ctx, f)
}

func (d *decryptor) handshake(ctx *core.Context, msg *core.Routed, f frame) error {
	switch {
	case d.hs.role == initiatorRole && f.kind() == kindResponse:
		sealed, err := d.hs.finish(ctx, f.Data)
		if err != nil {
			return err
		}
		payload, err := encodeFrame(kindFinish, 0, sealed)
		if err != nil {
			return err
		}
		if err := ctx.SendBytes(msg.ReturnRoute(), payload); err != nil {
			return err
		}

	case d.hs.role == responderRole && f.kind() == kindFinish:
		if err := d.hs.accept(ctx, f.Data); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: unexpected %s frame for %s", ErrInvalidFrame, f.kind(), d.hs.role)
	}

	opener, err := d.c.complete(d.hs.keys, msg.ReturnRoute(), d.hs.peer.Identifier())
	if err != nil {
		return err
	}
	d.opener = opener
	d.hs = nil

	if d.done != nil {
		d.done <- nil
	} else {
		ctx.Loggers().Infof("Secure channel from %s accepted at %s", d.c.peer, d.c.encryptor)
	}
	return nil
}

func (d *decryptor) fail(ctx *core.Context, err error) {
	d.failed = true
	d.hs = nil
	if d.done != nil {
		d.done <- fmt.Errorf("%w: %w", ErrHandshake, err)
		return
	}
	ctx.Loggers().Warnf("Secure channel handshake at %s failed: %s", d.c.decryptor, err)
	// a worker cannot wait for its own stop
	go func() { _ = d.c.Close() }()
}

func (d *decryptor) decrypt(ctx *core.Context, f frame) error {
	plain, err := d.opener.Open(f.Nonce, f.Data, nil)
	if err != nil {
		return fmt.Errorf("secure channel %s: %w", d.c.decryptor, err)
	}
	tm, err := core.DecodeTransportMessage(plain)
	if err != nil {
		return err
	}

	tm.ReturnRoute.Prepend(d.c.encryptor)
	msg := core.NewLocalMessage(tm, []core.LocalInfo{identity.IdentityInfo{Identifier: d.c.peer}})
	return ctx.Node().RouteFrom(ctx, msg, d.c.internal)
}

// encryptor seals what is routed through it and sends it to the remote
// decryptor.
type encryptor struct {
	c *Channel
}

func (e *encryptor) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	tm := msg.LocalMessage().Transport
	tm.OnwardRoute.PopFront()

	plain, err := core.EncodeTransportMessage(tm)
	if err != nil {
		return err
	}
	nonce, sealed, err := e.c.sealer.Seal(plain, nil)
	if err != nil {
		return err
	}
	payload, err := encodeFrame(kindData, nonce, sealed)
	if err != nil {
		return err
	}
	return ctx.SendBytes(e.c.remote, payload)
}
