package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mcpdock/pkg/logging"
)

// DefaultStateDir returns the mcpdock state directory, honoring
// XDG_CONFIG_HOME.
func DefaultStateDir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "mcpdock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcpdock"
	}
	return filepath.Join(home, ".config", "mcpdock")
}

// Load reads config.yaml from the given state directory and applies
// defaults. A missing file yields the default configuration; a malformed
// file is an error.
func Load(stateDir string) (Config, error) {
	var cfg Config

	path := filepath.Join(stateDir, "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logging.Debug("Config", "No config file at %s, using defaults", path)
	case err != nil:
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyDefaults(&cfg)
	resolvePaths(&cfg, stateDir)
	return cfg, nil
}

// resolvePaths anchors relative file paths at the state directory.
func resolvePaths(cfg *Config, stateDir string) {
	if !filepath.IsAbs(cfg.Catalog.CustomPath) {
		cfg.Catalog.CustomPath = filepath.Join(stateDir, cfg.Catalog.CustomPath)
	}
	for name, p := range cfg.Catalog.SnapshotPaths {
		if !filepath.IsAbs(p) {
			cfg.Catalog.SnapshotPaths[name] = filepath.Join(stateDir, p)
		}
	}
	if !filepath.IsAbs(cfg.Mounts.StatePath) {
		cfg.Mounts.StatePath = filepath.Join(stateDir, cfg.Mounts.StatePath)
	}
}
