// Package logging provides the subsystem-tagged logging facade used across
// mcpdock. It wraps log/slog with a fixed set of levels and a per-call
// subsystem label so that log lines from the launcher, sessions, the
// aggregator and the catalog refresher can be filtered independently.
//
// The package must be initialized once at startup via InitForCLI before any
// other package logs.
package logging
