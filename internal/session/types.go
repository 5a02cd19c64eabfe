package session

import "encoding/json"

// ProtocolVersion is the MCP protocol revision this client speaks.
const ProtocolVersion = "2024-11-05"

// ToolDefinition is a tool as advertised by the child in tools/list. The
// input schema is kept as raw decoded JSON; interpretation happens in the
// translator.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ResourceInfo identifies a resource advertised by the child. Resources are
// discovered for display only; they are not routed.
type ResourceInfo struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// PromptInfo identifies a prompt advertised by the child. Prompts are
// discovered for display only; they are not routed.
type PromptInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ContentItem is one entry in a tools/call result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the decoded result of a tools/call request.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
	raw     json.RawMessage
}

// Text returns the textual content of the first result entry if present,
// otherwise the raw result JSON.
func (r *CallToolResult) Text() string {
	if len(r.Content) > 0 && r.Content[0].Type == "text" {
		return r.Content[0].Text
	}
	return string(r.raw)
}

// ServerInfo is the serverInfo member of the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the decoded initialize response. Capabilities are
// retained but not interpreted.
type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      ServerInfo             `json:"serverInfo"`
}
