package core

import (
	"time"
)

// WorkerState represents the current state of a worker.
type WorkerState int32

const (
	// WorkerStateIdle means the worker is waiting for messages
	WorkerStateIdle WorkerState = iota

	// WorkerStateRunning means the worker is handling a message
	WorkerStateRunning

	// WorkerStateStopping means the worker is shutting down
	WorkerStateStopping

	// WorkerStateStopped means the worker has been stopped
	WorkerStateStopped
)

// String returns the string representation of WorkerState.
func (s WorkerState) String() string {
	switch s {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateRunning:
		return "running"
	case WorkerStateStopping:
		return "stopping"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultMailboxSize is the mailbox capacity used when none is configured.
const DefaultMailboxSize = 1000

// WorkerStats contains runtime statistics for a worker.
type WorkerStats struct {
	// Address the worker is registered at
	Address Address `json:"address"`

	// Current state
	State WorkerState `json:"-"`

	// Total messages taken from the mailbox
	MessagesProcessed uint64 `json:"messagesProcessed"`

	// Messages currently in the mailbox
	MailboxSize int `json:"mailboxSize"`

	// Time when the worker was started
	StartedAt time.Time `json:"startedAt"`

	// Last time a message was handled
	LastMessageAt time.Time `json:"lastMessageAt,omitempty"`
}

// workerOptions contains the per-worker settings given to StartWorker.
type workerOptions struct {
	incoming    IncomingAccessControl
	outgoing    OutgoingAccessControl
	mailboxSize int
}

// WorkerOption customizes a worker started with StartWorker.
type WorkerOption func(*workerOptions)

// WithIncomingAccessControl guards the messages a worker may receive.
func WithIncomingAccessControl(ac IncomingAccessControl) WorkerOption {
	return func(o *workerOptions) { o.incoming = ac }
}

// WithOutgoingAccessControl guards the messages a worker may send.
func WithOutgoingAccessControl(ac OutgoingAccessControl) WorkerOption {
	return func(o *workerOptions) { o.outgoing = ac }
}

// WithWorkerMailboxSize overrides the node's mailbox size for one worker.
func WithWorkerMailboxSize(size int) WorkerOption {
	return func(o *workerOptions) { o.mailboxSize = size }
}
