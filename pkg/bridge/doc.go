// Package bridge relays a serial byte stream to a remote TCP endpoint.
//
// The serial side feeds HandleBytes, which never blocks: bytes are pushed
// into a bounded ring and whatever does not fit is dropped and counted.
// A single worker (Run) owns the connection. It waits out the backoff
// delay, waits for the network, reads a fresh configuration snapshot,
// connects, optionally sends a greeting, and then drains the ring into the
// socket until a write fails. Every failure returns the worker to StateIdle
// and the cycle restarts; nothing short of context cancellation ends it.
//
// Writes are non-blocking. A would-block result sleeps for SendBackoff and
// retries from the same offset, so a chunk that started transmission is
// neither reordered nor truncated.
package bridge
