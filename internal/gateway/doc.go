// Package gateway owns the Tool Gateway: the bridge client with its
// bounded-wait round trips, and the MCP tool surface exposed to calling
// agents.
//
// Connectivity and timeout failures are local to this side; from the
// bridge's perspective a timed-out caller is just a dropped connection.
package gateway
