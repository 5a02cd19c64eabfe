package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"mcpdock/internal/translate"
	"mcpdock/pkg/logging"
)

// ToolRegistry registers mount invocables on the MCP server and tracks
// which names belong to which mount. The mcp-go server broadcasts
// notifications/tools/list_changed to connected clients on every AddTools
// and DeleteTools batch, so one mount activation or deactivation produces
// exactly one notification.
type ToolRegistry struct {
	mu     sync.Mutex
	srv    *mcpserver.MCPServer
	owners map[string]string   // full tool name -> mount handle
	names  map[string][]string // mount handle -> full tool names
}

// NewToolRegistry creates an empty registry. Attach must be called before
// any registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		owners: make(map[string]string),
		names:  make(map[string][]string),
	}
}

// Attach binds the registry to the running MCP server. Called by the
// aggregator server at start.
func (r *ToolRegistry) Attach(srv *mcpserver.MCPServer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.srv = srv
}

// RegisterMount registers a mount's invocables as one atomic batch. Every
// name is checked for collision first; a collision aborts the whole batch
// and nothing is registered. The registry never silently overwrites.
func (r *ToolRegistry) RegisterMount(ctx context.Context, handle string, tools []*translate.Invocable) error {
	r.mu.Lock()
	if r.srv == nil {
		r.mu.Unlock()
		return fmt.Errorf("aggregator server not started")
	}

	for _, inv := range tools {
		if owner, taken := r.owners[inv.FullName]; taken {
			r.mu.Unlock()
			return fmt.Errorf("tool name %s already registered by mount %s", inv.FullName, owner)
		}
	}

	serverTools := make([]mcpserver.ServerTool, 0, len(tools))
	for _, inv := range tools {
		r.owners[inv.FullName] = handle
		r.names[handle] = append(r.names[handle], inv.FullName)
		serverTools = append(serverTools, mcpserver.ServerTool{
			Tool: mcp.Tool{
				Name:        inv.FullName,
				Description: inv.Description,
				InputSchema: schemaFromParams(inv.Params),
			},
			Handler: invocableHandler(inv),
		})
	}
	srv := r.srv
	r.mu.Unlock()

	if len(serverTools) > 0 {
		srv.AddTools(serverTools...)
	}

	logging.Debug("Aggregator", "Registered %d tools for mount %s", len(serverTools), handle)
	return nil
}

// UnregisterMount removes every name registered for the handle and
// returns them. Unknown handles are a no-op.
func (r *ToolRegistry) UnregisterMount(ctx context.Context, handle string) []string {
	r.mu.Lock()
	names := r.names[handle]
	delete(r.names, handle)
	for _, n := range names {
		delete(r.owners, n)
	}
	srv := r.srv
	r.mu.Unlock()

	if srv != nil && len(names) > 0 {
		srv.DeleteTools(names...)
	}

	logging.Debug("Aggregator", "Unregistered %d tools for mount %s", len(names), handle)
	return names
}

// RegisteredNames returns all dynamically registered tool names, for
// diagnostics and tests.
func (r *ToolRegistry) RegisteredNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.owners))
	for n := range r.owners {
		out = append(out, n)
	}
	return out
}

// Owner returns the mount handle owning a registered name.
func (r *ToolRegistry) Owner(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.owners[name]
	return h, ok
}

// invocableHandler adapts an invocable to the mcp-go handler signature.
// Execution failures become tool error results, not protocol errors, so
// the mount stays usable after a failed call.
func invocableHandler(inv *translate.Invocable) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
			args = argsMap
		}

		text, err := inv.Execute(ctx, args)
		if err != nil {
			logging.Error("Aggregator", err, "Tool %s failed", inv.FullName)
			return mcp.NewToolResultError(fmt.Sprintf("tool %s failed: %v", inv.FullName, err)), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// schemaFromParams converts a parameter descriptor set back into an MCP
// input schema for the registration surface.
func schemaFromParams(params []translate.Parameter) mcp.ToolInputSchema {
	properties := make(map[string]interface{})
	required := []string{}

	for _, p := range params {
		propSchema := map[string]interface{}{
			"type": p.Type,
		}
		if p.Description != "" {
			propSchema["description"] = p.Description
		}
		if p.HasDefault {
			propSchema["default"] = p.Default
		}

		properties[p.Name] = propSchema

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
