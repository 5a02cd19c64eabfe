// Package launcher spawns child MCP servers with piped stdio and owns
// their teardown contract.
//
// Two launch kinds are supported: container children run through the
// container engine in interactive auto-remove mode, and command children
// spawned directly with a controlled environment. Either way, when Spawn
// returns the child is live and its pipes are usable; if the caller fails
// subsequent initialization it must invoke the process's Teardown.
//
// Teardown closes stdin, waits up to a grace period for a clean exit and
// then force-terminates. Container children additionally rely on the
// engine's auto-remove to reclaim the container record.
package launcher
