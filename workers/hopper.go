package workers

import (
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
)

// Hopper relays any message to the next hop of its onward route and adds
// itself to the return route, so replies travel back through it.
type Hopper struct {
	Printer *display.Printer
}

// HandleMessage steps the route and forwards the message.
func (h *Hopper) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	h.Printer.Printf(display.OnBrightBlue, "🐇 Address: %s, Received: %s", ctx.Address(), msg)

	m := msg.LocalMessage()
	tm := &m.Transport

	removed, err := tm.OnwardRoute.Step()
	if err != nil {
		return fmt.Errorf("hopper: %w", err)
	}

	h.Printer.Printf(display.OnBrightBlue,
		"\tonward_route -> remove address: %s, \n\treturn_route -> prepend address: %s",
		removed, ctx.Address())

	tm.ReturnRoute.Prepend(ctx.Address())

	return ctx.Forward(m)
}
