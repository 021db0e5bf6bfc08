// Package host owns the modeler document and its cooperative run loop.
//
// Ownership boundary:
// - document state: layers, objects, metadata
// - the single execution turn that may mutate that state
// - the embedded script VM bound to the document
//
// Document state is never touched off the loop goroutine. The bridge
// scheduler drains on a turn hook, so handlers inherit the invariant
// without locks.
package host
