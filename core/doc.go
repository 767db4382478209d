// Package core implements the node runtime used by the hello demo scenarios.
//
// A Node hosts Workers. Every worker owns a local Address and a mailbox,
// runs in its own goroutine and handles messages one at a time. Messages
// carry an onward Route and a return Route; the node delivers each message
// to the first hop of its onward route, handing non-local hops to the
// transport registered for their TransportType.
//
// Delivery is guarded by FlowControls (which producers may reach which
// consumers) and by per-worker access controls.
package core
