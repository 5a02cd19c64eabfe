// Package mounts holds the set of currently mounted MCP servers and its
// on-disk mirror.
//
// The store is a coarse-locked map from entry id to mount record plus a
// secondary index from prefix to entry id. Every mutation synchronously
// rewrites the state file via temp file, fsync and rename, so the file
// always reflects a consistent snapshot. Live process handles are not
// trusted across restarts: on load they are cleared and each mount is
// replayed through the full activation flow.
//
// The store also grants the per-entry locks that serialize activate and
// deactivate for the same entry id.
package mounts
