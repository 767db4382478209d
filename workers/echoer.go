package workers

import (
	"fmt"

	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/display"
)

// EchoPrefix is prepended to every body the Echoer sends back.
const EchoPrefix = "👈 echo back: "

// Echoer replies to every string message on its return route.
type Echoer struct {
	Printer *display.Printer
}

// HandleMessage prints the exchange and sends the body back.
func (e *Echoer) HandleMessage(ctx *core.Context, msg *core.Routed) error {
	body, err := msg.Body()
	if err != nil {
		return fmt.Errorf("echoer: %w", err)
	}
	reply := EchoPrefix + body

	e.Printer.Lines(display.OnBrightMagenta,
		fmt.Sprintf("📣 'echoer' worker → Address: %s", ctx.Address()),
		fmt.Sprintf("    Received: '%s'", body),
		fmt.Sprintf("    Sent: '%s'", reply),
	)

	return ctx.Send(msg.ReturnRoute(), reply)
}
