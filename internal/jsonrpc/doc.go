// Package jsonrpc implements the line-delimited JSON-RPC 2.0 framing used
// to talk to child MCP servers over their stdio pipes.
//
// Outbound messages are requests (with a monotonically increasing integer
// id) or notifications (no id), one JSON object per line. Inbound lines are
// parsed and classified as responses or notifications; lines that are not
// valid JSON are logged and skipped without terminating the stream.
//
// The framing layer allocates ids but does not correlate responses to
// requests; correlation is the session's job (see internal/session).
package jsonrpc
