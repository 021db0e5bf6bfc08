// Package protocol owns the wire contract between the Tool Gateway and the
// Host Bridge.
//
// Ownership boundary:
// - command/response envelope shapes
// - newline-delimited JSON framing
// - the error-kind taxonomy carried in error responses
//
// The envelope schema is normative; the framing is shared by the TCP and
// HTTP transports.
package protocol
