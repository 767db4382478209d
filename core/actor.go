package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// runner drives one worker: it owns the mailbox and the goroutine that
// feeds it to the worker.
type runner struct {
	addr     Address
	worker   Worker
	node     *Node
	incoming IncomingAccessControl

	// Channel for receiving messages
	mailbox chan envelope

	// Context handed to the worker, cancelled on stop
	wctx   *Context
	cancel context.CancelFunc

	// Wait group for graceful shutdown
	wg sync.WaitGroup

	state             int32 // WorkerState
	messagesProcessed uint64
	startedAt         time.Time
	lastMessageAt     int64 // Unix nanoseconds
}

func newRunner(n *Node, addr Address, w Worker, opts workerOptions) *runner {
	ctx, cancel := context.WithCancel(n.ctx)

	size := opts.mailboxSize
	if size <= 0 {
		size = n.mailboxSize
	}

	r := &runner{
		addr:      addr,
		worker:    w,
		node:      n,
		incoming:  opts.incoming,
		mailbox:   make(chan envelope, size),
		cancel:    cancel,
		startedAt: time.Now(),
	}
	r.wctx = &Context{Context: ctx, node: n, addr: addr, outgoing: opts.outgoing}
	atomic.StoreInt32(&r.state, int32(WorkerStateIdle))
	return r
}

// start runs the worker's Initialize hook, then begins the message loop.
func (r *runner) start() error {
	if init, ok := r.worker.(Initializer); ok {
		if err := init.Initialize(r.wctx); err != nil {
			r.cancel()
			atomic.StoreInt32(&r.state, int32(WorkerStateStopped))
			return fmt.Errorf("failed to initialize worker %s: %w", r.addr, err)
		}
	}

	r.wg.Add(1)
	go r.messageLoop()
	return nil
}

// stop cancels the loop, waits for the current message to finish and runs
// the Shutdown hook.
func (r *runner) stop() error {
	for {
		st := r.State()
		if st == WorkerStateStopping || st == WorkerStateStopped {
			return nil
		}
		if atomic.CompareAndSwapInt32(&r.state, int32(st), int32(WorkerStateStopping)) {
			break
		}
	}

	r.cancel()
	r.wg.Wait()

	var err error
	if s, ok := r.worker.(Shutdowner); ok {
		sctx := &Context{Context: context.WithoutCancel(r.wctx), node: r.node, addr: r.addr, outgoing: r.wctx.outgoing}
		err = s.Shutdown(sctx)
	}

	atomic.StoreInt32(&r.state, int32(WorkerStateStopped))
	return err
}

// deliver puts a message in the mailbox without blocking.
func (r *runner) deliver(env envelope) error {
	switch r.State() {
	case WorkerStateStopping, WorkerStateStopped:
		return fmt.Errorf("%w: %s", ErrWorkerStopped, r.addr)
	}

	select {
	case r.mailbox <- env:
		return nil
	case <-r.wctx.Done():
		return fmt.Errorf("%w: %s", ErrWorkerStopped, r.addr)
	default:
		return fmt.Errorf("%w: %s", ErrMailboxFull, r.addr)
	}
}

// State returns the current state.
func (r *runner) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&r.state))
}

// Stats returns current runtime statistics for the worker.
func (r *runner) Stats() WorkerStats {
	var lastMessageAt time.Time
	if last := atomic.LoadInt64(&r.lastMessageAt); last > 0 {
		lastMessageAt = time.Unix(0, last)
	}

	return WorkerStats{
		Address:           r.addr,
		State:             r.State(),
		MessagesProcessed: atomic.LoadUint64(&r.messagesProcessed),
		MailboxSize:       len(r.mailbox),
		StartedAt:         r.startedAt,
		LastMessageAt:     lastMessageAt,
	}
}

func (r *runner) messageLoop() {
	defer r.wg.Done()

	for {
		select {
		case env := <-r.mailbox:
			r.processMessage(env)

		case <-r.wctx.Done():
			if n := len(r.mailbox); n > 0 {
				r.node.loggers.Debugf("Worker %s stopped with %d undelivered messages", r.addr, n)
			}
			return
		}
	}
}

func (r *runner) processMessage(env envelope) {
	if !atomic.CompareAndSwapInt32(&r.state, int32(WorkerStateIdle), int32(WorkerStateRunning)) {
		return
	}
	defer atomic.CompareAndSwapInt32(&r.state, int32(WorkerStateRunning), int32(WorkerStateIdle))

	atomic.AddUint64(&r.messagesProcessed, 1)
	atomic.StoreInt64(&r.lastMessageAt, time.Now().UnixNano())

	if r.incoming != nil {
		ok, err := r.incoming.IsAuthorized(r.wctx, env.msg)
		if err != nil {
			r.node.loggers.Warnf("Incoming access control of %s failed: %s", r.addr, err)
		}
		if err != nil || !ok {
			r.node.metrics.dropped("access_control")
			r.node.loggers.Warnf("Message from %s to %s denied by access control", env.src, r.addr)
			return
		}
	}

	msg := &Routed{msg: env.msg, dest: r.addr, src: env.src}
	if err := r.worker.HandleMessage(r.wctx, msg); err != nil {
		r.node.loggers.Errorf("Worker %s failed to handle message: %s", r.addr, err)
	}
}
