package securechannel

import (
	"time"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/identity"
)

// DefaultTimeout bounds the initiator's handshake.
const DefaultTimeout = 10 * time.Second

// Options configures the initiator of a channel.
type Options struct {
	trustContext *identity.TrustContext
	credential   *identity.Credential
	timeout      time.Duration
}

// NewOptions returns the default initiator options.
func NewOptions() Options {
	return Options{timeout: DefaultTimeout}
}

// WithTrustContext verifies the responder's credential with the authority
// of tc.
func (o Options) WithTrustContext(tc *identity.TrustContext) Options {
	o.trustContext = tc
	return o
}

// WithCredential presents cred to the responder.
func (o Options) WithCredential(cred *identity.Credential) Options {
	o.credential = cred
	return o
}

// WithTimeout bounds the handshake.
func (o Options) WithTimeout(d time.Duration) Options {
	if d > 0 {
		o.timeout = d
	}
	return o
}

// ListenerOptions configures a listener. Channels it accepts produce
// messages under the listener's spawner flow control id.
type ListenerOptions struct {
	spawnerID    core.FlowControlID
	consumes     []core.FlowControlID
	trustContext *identity.TrustContext
	credential   *identity.Credential
}

// NewListenerOptions creates options with a fresh spawner id.
func NewListenerOptions() ListenerOptions {
	return ListenerOptions{spawnerID: core.NewFlowControlID()}
}

// AsConsumer lets the listener and its channels receive messages of ids,
// typically the spawner id of a TCP listener.
func (o ListenerOptions) AsConsumer(ids ...core.FlowControlID) ListenerOptions {
	o.consumes = append(append([]core.FlowControlID(nil), o.consumes...), ids...)
	return o
}

// WithTrustContext verifies initiators' credentials with the authority of
// tc.
func (o ListenerOptions) WithTrustContext(tc *identity.TrustContext) ListenerOptions {
	o.trustContext = tc
	return o
}

// WithCredential presents cred to initiators.
func (o ListenerOptions) WithCredential(cred *identity.Credential) ListenerOptions {
	o.credential = cred
	return o
}

// SpawnerFlowControlID is the id workers consume to accept messages that
// arrive over the listener's channels.
func (o ListenerOptions) SpawnerFlowControlID() core.FlowControlID {
	return o.spawnerID
}
