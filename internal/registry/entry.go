package registry

import "time"

// Origin tags where a catalog entry was discovered.
type Origin string

const (
	OriginDocker     Origin = "docker"
	OriginMCPServers Origin = "mcpservers"
	OriginOfficial   Origin = "mcp-official"
	OriginAwesome    Origin = "awesome"
	OriginCustom     Origin = "custom"
)

// LaunchMethod selects how an entry's server is started.
type LaunchMethod string

const (
	// LaunchPodman runs the entry's container image through the engine.
	LaunchPodman LaunchMethod = "podman"
	// LaunchStdioProxy spawns the entry's server-command locally.
	LaunchStdioProxy LaunchMethod = "stdio-proxy"
	// LaunchRemoteHTTP is declared in catalogs but has no implementation
	// path yet; activation fails with a clear cause.
	LaunchRemoteHTTP LaunchMethod = "remote-http"
	// LaunchUnknown marks entries whose launch method could not be
	// determined at intake.
	LaunchUnknown LaunchMethod = "unknown"
)

// ServerCommand describes how to run a stdio-proxy entry.
type ServerCommand struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Entry is an immutable catalog descriptor for one candidate MCP server.
type Entry struct {
	// ID is the stable identifier (slug), unique across the catalog.
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Origin      Origin `yaml:"origin,omitempty" json:"origin,omitempty"`

	RepositoryURL string `yaml:"repository_url,omitempty" json:"repository_url,omitempty"`
	Image         string `yaml:"image,omitempty" json:"image,omitempty"`

	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	Official       bool `yaml:"official,omitempty" json:"official,omitempty"`
	Featured       bool `yaml:"featured,omitempty" json:"featured,omitempty"`
	RequiresAPIKey bool `yaml:"requires_api_key,omitempty" json:"requires_api_key,omitempty"`

	Launch  LaunchMethod   `yaml:"launch,omitempty" json:"launch,omitempty"`
	Command *ServerCommand `yaml:"server_command,omitempty" json:"server_command,omitempty"`

	RefreshedAt time.Time              `yaml:"refreshed_at,omitempty" json:"refreshed_at,omitempty"`
	Raw         map[string]interface{} `yaml:"raw,omitempty" json:"raw,omitempty"`
}

// normalize fixes up an entry at intake: tags are deduplicated preserving
// order, and an empty launch method becomes LaunchUnknown.
func (e *Entry) normalize() {
	if e.Launch == "" {
		e.Launch = LaunchUnknown
	}
	if len(e.Tags) > 1 {
		seen := make(map[string]bool, len(e.Tags))
		tags := e.Tags[:0]
		for _, t := range e.Tags {
			if seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, t)
		}
		e.Tags = tags
	}
}
