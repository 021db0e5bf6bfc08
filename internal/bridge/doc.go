// Package bridge owns the in-host command bridge.
//
// Ownership boundary:
// - listener lifecycle and per-connection read/write loops
// - the pending-call queue between the transport and execution domains
// - draining that queue on the host's cooperative turn
//
// Two concurrency domains meet here. The transport domain is one goroutine
// per connection; the execution domain is the host turn that calls Tick.
// The queue is the only shared structure between them. Handlers never run
// on a connection goroutine.
package bridge
