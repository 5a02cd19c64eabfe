package mounts

import (
	"strings"
	"time"
)

// Mount is the bookkeeping record for one running child MCP server.
type Mount struct {
	// EntryID is the catalog descriptor's slug, unique across active mounts.
	EntryID string `json:"entry_id"`

	// Name is the display name copied from the descriptor.
	Name string `json:"name"`

	// Prefix namespaces every registered tool as mcp_<prefix>_<tool>.
	// Unique across active mounts.
	Prefix string `json:"prefix"`

	// Handle refers to the running child: the container name for container
	// mounts, a process-group tag for command mounts. Regenerated on
	// replay, never trusted from disk.
	Handle string `json:"handle,omitempty"`

	// Environment is passed to the child at spawn. Mutations take effect
	// only after the mount is torn down and recreated.
	Environment map[string]string `json:"environment,omitempty"`

	// Tools holds the discovered tool short-names in discovery order,
	// without prefix.
	Tools []string `json:"tools"`

	// Resources and Prompts are discovered identifiers, kept for display;
	// they are not routed.
	Resources []string `json:"resources,omitempty"`
	Prompts   []string `json:"prompts,omitempty"`

	// MountedAt is the wall-clock activation time.
	MountedAt time.Time `json:"mounted_at"`
}

// DerivePrefix builds the default prefix for an entry id by replacing
// separator characters, so "sqlite-db" becomes "sqlite_db".
func DerivePrefix(entryID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, entryID)
}

// ToolName returns the fully namespaced callable name for one of the
// mount's tools.
func (m *Mount) ToolName(tool string) string {
	return "mcp_" + m.Prefix + "_" + tool
}

// clone returns a deep copy so callers cannot mutate store state.
func (m *Mount) clone() *Mount {
	out := *m
	if m.Environment != nil {
		out.Environment = make(map[string]string, len(m.Environment))
		for k, v := range m.Environment {
			out.Environment[k] = v
		}
	}
	out.Tools = append([]string(nil), m.Tools...)
	out.Resources = append([]string(nil), m.Resources...)
	out.Prompts = append([]string(nil), m.Prompts...)
	return &out
}
