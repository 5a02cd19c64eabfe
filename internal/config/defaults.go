package config

import "time"

// Default values merged into any loaded configuration.
const (
	DefaultHost      = "localhost"
	DefaultPort      = 8090
	DefaultTransport = MCPTransportStreamableHTTP

	DefaultCustomCatalogFile = "custom_servers.yaml"
	DefaultStateFile         = "active_mounts.json"

	DefaultEngineBinary = "podman"

	DefaultOnTransportDeath = "keep"
	DefaultCallTimeout      = 15 * time.Second
)

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Aggregator.Host == "" {
		cfg.Aggregator.Host = DefaultHost
	}
	if cfg.Aggregator.Port == 0 {
		cfg.Aggregator.Port = DefaultPort
	}
	if cfg.Aggregator.Transport == "" {
		cfg.Aggregator.Transport = DefaultTransport
	}
	if cfg.Catalog.CustomPath == "" {
		cfg.Catalog.CustomPath = DefaultCustomCatalogFile
	}
	if cfg.Mounts.StatePath == "" {
		cfg.Mounts.StatePath = DefaultStateFile
	}
	if cfg.Mounts.OnTransportDeath == "" {
		cfg.Mounts.OnTransportDeath = DefaultOnTransportDeath
	}
	if cfg.Mounts.CallTimeout == 0 {
		cfg.Mounts.CallTimeout = DefaultCallTimeout
	}
	if cfg.Engine.Binary == "" {
		cfg.Engine.Binary = DefaultEngineBinary
	}
}
