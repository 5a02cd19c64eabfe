package app

// Config carries the command-line level settings into bootstrap.
type Config struct {
	// Debug enables verbose logging.
	Debug bool
	// StateDir overrides the default state directory
	// (~/.config/mcpdock). Empty selects the default.
	StateDir string
	// Transport overrides the configured aggregator transport.
	Transport string
	// Version is the build version, advertised in the MCP handshake.
	Version string
}

// NewConfig creates the application configuration.
func NewConfig(debug bool, stateDir, transport, version string) *Config {
	return &Config{
		Debug:     debug,
		StateDir:  stateDir,
		Transport: transport,
		Version:   version,
	}
}
