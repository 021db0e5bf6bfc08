// Package commands builds the bridge's command table against a host
// document. One entry per supported host action; the table is constructed
// once at startup and never mutated afterwards.
package commands
