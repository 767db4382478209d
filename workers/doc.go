// Package workers holds the three workers the demo scenarios start: an echo
// responder, a multi-hop relay and a single-hop forwarder.
package workers
