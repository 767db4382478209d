package workers

import (
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
)

// Forwarder sends every message it receives to Address, typically the
// connection to the next node, and wires flow control so that traffic can
// pass in both directions.
type Forwarder struct {
	Address core.Address
	Printer *display.Printer
}

// HandleMessage replaces itself with Address and forwards the message.
func (f *Forwarder) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	f.Printer.Printf(display.OnBrightBlue, "👉 Address: %s, Received: %s", ctx.Address(), msg)

	tm := msg.LocalMessage().Transport
	tm.OnwardRoute.PopFront().Prepend(f.Address)

	prevHop, err := tm.ReturnRoute.Next()
	if err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	// local info such as the transport identity stays on this node
	m := core.NewLocalMessage(tm, nil)

	flow := ctx.FlowControls()
	if info, ok := flow.FindWithProducerAddress(f.Address); ok {
		flow.AddConsumer(prevHop, info.FlowControlID())
	}
	if info, ok := flow.FindWithProducerAddress(prevHop); ok {
		flow.AddConsumer(f.Address, info.FlowControlID())
	}

	return ctx.Forward(m)
}
