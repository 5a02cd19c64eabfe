package aggregator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"mcpdock/internal/orchestrator"
	"mcpdock/internal/registry"
)

// ControlTools is the built-in management surface: catalog search and
// inspection, mount and unmount, environment updates and catalog refresh.
// These tools let an MCP client drive mcpdock without a side channel.
type ControlTools struct {
	orch      *orchestrator.Orchestrator
	refresher *registry.Refresher
}

// NewControlTools wires the management tool set.
func NewControlTools(orch *orchestrator.Orchestrator, refresher *registry.Refresher) *ControlTools {
	return &ControlTools{orch: orch, refresher: refresher}
}

// serverTools builds the mcp-go tool set registered at server start.
func (c *ControlTools) serverTools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        "dock_catalog_search",
				Description: "Search the MCP server catalog. Returns matching entries ranked by relevance.",
				InputSchema: objectSchema(map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Search terms, matched against name, id, tags and description"},
					"limit": map[string]interface{}{"type": "integer", "description": "Maximum number of results", "default": 10},
				}, []string{"query"}),
			},
			Handler: c.handleCatalogSearch,
		},
		{
			Tool: mcp.Tool{
				Name:        "dock_catalog_info",
				Description: "Show the full catalog descriptor for one entry.",
				InputSchema: objectSchema(map[string]interface{}{
					"id": map[string]interface{}{"type": "string", "description": "Catalog entry id"},
				}, []string{"id"}),
			},
			Handler: c.handleCatalogInfo,
		},
		{
			Tool: mcp.Tool{
				Name: "dock_mount",
				Description: "Mount a catalog entry: launch its server, discover its tools and register them " +
					"as mcp_<prefix>_<tool> callables.",
				InputSchema: objectSchema(map[string]interface{}{
					"id":     map[string]interface{}{"type": "string", "description": "Catalog entry id"},
					"prefix": map[string]interface{}{"type": "string", "description": "Namespace prefix; defaults to the entry id with non-alphanumeric characters replaced by underscores"},
					"env":    map[string]interface{}{"type": "object", "description": "Environment overrides passed to the child"},
					"launch": map[string]interface{}{"type": "string", "description": "Launch method override for ambiguous entries"},
				}, []string{"id"}),
			},
			Handler: c.handleMount,
		},
		{
			Tool: mcp.Tool{
				Name:        "dock_unmount",
				Description: "Unmount an active entry: unregister its tools and stop its server.",
				InputSchema: objectSchema(map[string]interface{}{
					"id": map[string]interface{}{"type": "string", "description": "Catalog entry id"},
				}, []string{"id"}),
			},
			Handler: c.handleUnmount,
		},
		{
			Tool: mcp.Tool{
				Name:        "dock_mount_list",
				Description: "List all active mounts with their prefixes and discovered tools.",
				InputSchema: objectSchema(map[string]interface{}{}, nil),
			},
			Handler: c.handleMountList,
		},
		{
			Tool: mcp.Tool{
				Name: "dock_config_set",
				Description: "Update a mount's stored environment. Changes take effect the next time the entry " +
					"is unmounted and mounted again; the running child is not reconfigured.",
				InputSchema: objectSchema(map[string]interface{}{
					"id":  map[string]interface{}{"type": "string", "description": "Catalog entry id"},
					"env": map[string]interface{}{"type": "object", "description": "Environment values to merge into the stored set"},
				}, []string{"id", "env"}),
			},
			Handler: c.handleConfigSet,
		},
		{
			Tool: mcp.Tool{
				Name:        "dock_refresh",
				Description: "Refresh catalog sources. Without a source name all sources are refreshed.",
				InputSchema: objectSchema(map[string]interface{}{
					"source": map[string]interface{}{"type": "string", "description": "Source name; omit for all"},
					"force":  map[string]interface{}{"type": "boolean", "description": "Ignore the per-source minimum interval", "default": false},
				}, nil),
			},
			Handler: c.handleRefresh,
		},
	}
}

func (c *ControlTools) handleCatalogSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	query, _ := args["query"].(string)
	limit := 10
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	results := c.orch.Catalog().Search(query, limit)
	type hit struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Description string  `json:"description,omitempty"`
		Launch      string  `json:"launch"`
		Official    bool    `json:"official,omitempty"`
		Score       float64 `json:"score"`
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, hit{
			ID:          r.Entry.ID,
			Name:        r.Entry.Name,
			Description: r.Entry.Description,
			Launch:      string(r.Entry.Launch),
			Official:    r.Entry.Official,
			Score:       r.Score,
		})
	}
	return jsonResult(hits)
}

func (c *ControlTools) handleCatalogInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, _ := args["id"].(string)

	entry, ok := c.orch.Catalog().Get(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no catalog entry %q", id)), nil
	}
	return jsonResult(entry)
}

func (c *ControlTools) handleMount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, _ := args["id"].(string)
	prefix, _ := args["prefix"].(string)
	launch, _ := args["launch"].(string)

	var env map[string]string
	if rawEnv, ok := args["env"].(map[string]interface{}); ok {
		env = make(map[string]string, len(rawEnv))
		for k, v := range rawEnv {
			env[k] = fmt.Sprintf("%v", v)
		}
	}

	mount, err := c.orch.Activate(ctx, orchestrator.ActivateRequest{
		EntryID:     id,
		Prefix:      prefix,
		Environment: env,
		Launch:      registry.LaunchMethod(launch),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(mount)
}

func (c *ControlTools) handleUnmount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, _ := args["id"].(string)

	if err := c.orch.Deactivate(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("unmounted %s", id)), nil
}

func (c *ControlTools) handleMountList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(c.orch.Store().List())
}

func (c *ControlTools) handleConfigSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, _ := args["id"].(string)

	rawEnv, ok := args["env"].(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("env must be an object of name/value pairs"), nil
	}
	env := make(map[string]string, len(rawEnv))
	for k, v := range rawEnv {
		env[k] = fmt.Sprintf("%v", v)
	}

	if err := c.orch.Store().UpdateEnvironment(id, env); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated environment for %s; remount to apply", id)), nil
}

func (c *ControlTools) handleRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	source, _ := args["source"].(string)
	force, _ := args["force"].(bool)

	names := c.refresher.SourceNames()
	if source != "" {
		names = []string{source}
	}

	var refreshed []string
	for _, name := range names {
		if err := c.refresher.Refresh(ctx, name, force); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("refresh %s: %v", name, err)), nil
		}
		refreshed = append(refreshed, name)
	}
	return jsonResult(map[string]interface{}{
		"refreshed": refreshed,
		"entries":   c.orch.Catalog().Len(),
	})
}

// requestArgs extracts the arguments map from an MCP request.
func requestArgs(req mcp.CallToolRequest) map[string]interface{} {
	if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
		return argsMap
	}
	return map[string]interface{}{}
}

// jsonResult marshals a value into a text tool result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// objectSchema builds an object input schema from properties and required
// names.
func objectSchema(properties map[string]interface{}, required []string) mcp.ToolInputSchema {
	if required == nil {
		required = []string{}
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
