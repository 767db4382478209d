package tcp

import (
	"time"

	"github.com/najoast/hellonode/core"
)

// ListenerOptions configures a listener. Every connection it accepts is
// spawned under the listener's flow control id.
type ListenerOptions struct {
	flowControlID core.FlowControlID
}

// NewListenerOptions creates options with a fresh spawner flow control id.
func NewListenerOptions() ListenerOptions {
	return ListenerOptions{flowControlID: core.NewFlowControlID()}
}

// SpawnerFlowControlID is the id workers consume to accept messages from
// connections of the listener.
func (o ListenerOptions) SpawnerFlowControlID() core.FlowControlID {
	return o.flowControlID
}

// ConnectionOptions configures an outgoing connection.
type ConnectionOptions struct {
	flowControlID core.FlowControlID

	// Timeout bounds each dial attempt.
	Timeout time.Duration

	// Backoff controls dial retries.
	Backoff *Backoff
}

// NewConnectionOptions creates options with a fresh flow control id.
func NewConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		flowControlID: core.NewFlowControlID(),
		Timeout:       5 * time.Second,
		Backoff:       DefaultBackoff(),
	}
}

// FlowControlID is the id of the connection's receiver.
func (o ConnectionOptions) FlowControlID() core.FlowControlID {
	return o.flowControlID
}
