// Package app is the composition root: it loads configuration, wires the
// catalog, store, launcher, client manager, orchestrator and aggregator
// together, and runs them until shutdown.
//
// The active-mount store and client manager are owned here and passed
// explicitly to their consumers; nothing reaches through package-level
// state.
package app
