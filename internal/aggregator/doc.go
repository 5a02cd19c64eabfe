// Package aggregator exposes mcpdock's own MCP surface and the dynamic
// tool registry behind it.
//
// The server wraps a mark3labs/mcp-go MCP server reachable over
// streamable-http (default), SSE or stdio, with systemd socket activation
// support for the HTTP transports. Mounted children's tools are
// registered and removed through the ToolRegistry, which tracks exactly
// which names each mount added so deactivation removes precisely those.
// Registration batches are atomic: a name collision aborts the whole
// batch and nothing is registered.
//
// The server also carries a small set of built-in management tools
// (dock_*) so an MCP client can search the catalog and drive mounting
// without a separate control channel.
package aggregator
