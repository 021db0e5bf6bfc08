// Package registry owns the command table and dispatch boundary.
//
// Ownership boundary:
// - command name -> handler mapping, built once at startup
// - declared parameter shapes and their validation
// - conversion of handler outcomes into response envelopes
//
// Dispatch never surfaces a handler failure as a transport failure.
package registry
