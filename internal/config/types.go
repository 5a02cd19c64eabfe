package config

import "time"

// Transport constants for the aggregator's own MCP endpoint.
const (
	// MCPTransportStreamableHTTP is the streamable HTTP transport.
	MCPTransportStreamableHTTP = "streamable-http"
	// MCPTransportSSE is the Server-Sent Events transport.
	MCPTransportSSE = "sse"
	// MCPTransportStdio is the standard I/O transport.
	MCPTransportStdio = "stdio"
)

// Config is the top-level configuration structure for mcpdock.
type Config struct {
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Mounts     MountsConfig     `yaml:"mounts"`
	Engine     EngineConfig     `yaml:"engine"`
}

// AggregatorConfig defines the aggregator's MCP endpoint.
type AggregatorConfig struct {
	Port      int    `yaml:"port,omitempty"`      // Port for the aggregator endpoint (default: 8090)
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Transport string `yaml:"transport,omitempty"` // Transport to use (default: streamable-http)
}

// CatalogConfig tunes the catalog sources and refresh cadence.
type CatalogConfig struct {
	// TickInterval is how often the background refresher wakes.
	TickInterval time.Duration `yaml:"tick_interval,omitempty"`
	// MinSourceInterval is the per-source minimum between refreshes.
	MinSourceInterval time.Duration `yaml:"min_source_interval,omitempty"`
	// CustomPath points at the user-editable catalog file. Relative paths
	// resolve against the state directory.
	CustomPath string `yaml:"custom_path,omitempty"`
	// SnapshotPaths are additional catalog files (upstream snapshots),
	// keyed by source name.
	SnapshotPaths map[string]string `yaml:"snapshot_paths,omitempty"`
}

// MountsConfig tunes mount behavior.
type MountsConfig struct {
	// StatePath is the active-mount state file. Relative paths resolve
	// against the state directory.
	StatePath string `yaml:"state_path,omitempty"`
	// OnTransportDeath selects what happens when a mounted child's stdio
	// dies: "keep" (default) or "unmount".
	OnTransportDeath string `yaml:"on_transport_death,omitempty"`
	// CallTimeout bounds each tools/call to a child.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`
}

// EngineConfig names the container engine driver.
type EngineConfig struct {
	Binary string `yaml:"binary,omitempty"` // Container engine binary (default: podman)
}
