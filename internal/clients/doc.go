// Package clients maps a mount's process handle to its live session and
// child process pair. Pure lookup, registration and removal; removal
// closes the session (which closes the child's stdin) and reaps the
// child. Removing an unknown handle is a no-op.
package clients
