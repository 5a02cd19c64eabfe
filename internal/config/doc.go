// Package config defines mcpdock's configuration structure and loading.
//
// Configuration lives in a single YAML file (config.yaml) inside the
// mcpdock state directory, by default ~/.config/mcpdock. Defaults are
// merged in code so a missing or partial file always yields a runnable
// configuration.
package config
