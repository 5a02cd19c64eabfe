// Package session implements the MCP client session spoken to a single
// child server over line-delimited JSON-RPC (see internal/jsonrpc).
//
// A session owns one background reader goroutine draining the child's
// stdout and a pending-response map correlating request ids to waiters.
// Multiple concurrent calls on the same session are allowed: writes share
// the framer's serialization lock, responses complete their own waiters in
// whatever order the child produces them.
//
// A session is single-owner: it belongs to exactly one mount and is never
// shared. Lifecycle: created -> initialized -> closed.
package session
