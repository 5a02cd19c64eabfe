// Package orchestrator composes the launcher, session, translator,
// dynamic tool registry, client manager and active-mount store into the
// end-to-end mount and unmount flows.
//
// Activation walks a strict sequence (resolve, prefix check, spawn,
// handshake, discovery, translation, registration, persist) and unwinds
// everything it did on any failure, so a failed activation leaves no
// residual: no session, no registered tools, no store record, no child
// process. Deactivation is the reverse walk. Both are serialized per
// entry id by the store's entry locks; activations of distinct entries
// proceed concurrently.
package orchestrator
