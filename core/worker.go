package core

// Worker handles the messages delivered to its address. A worker's
// HandleMessage is never called concurrently.
type Worker interface {
	HandleMessage(ctx *Context, msg *Routed) error
}

// Initializer is implemented by workers that need to run code after they are
// registered and before their first message.
type Initializer interface {
	Initialize(ctx *Context) error
}

// Shutdowner is implemented by workers that release resources when stopped.
type Shutdowner interface {
	Shutdown(ctx *Context) error
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx *Context, msg *Routed) error

// HandleMessage calls f(ctx, msg).
func (f WorkerFunc) HandleMessage(ctx *Context, msg *Routed) error {
	return f(ctx, msg)
}
