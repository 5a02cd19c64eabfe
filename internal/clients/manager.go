package clients

import (
	"sync"

	"mcpdock/internal/launcher"
	"mcpdock/internal/session"
	"mcpdock/pkg/logging"
)

// Manager tracks the live session and child process for each active
// mount, keyed by the mount's process handle. Safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	sess *session.Session
	proc *launcher.Process
}

// NewManager creates an empty client manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Register associates a handle with its session and process. A mount has
// exactly one live session and one live child while active.
func (m *Manager) Register(handle string, sess *session.Session, proc *launcher.Process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[handle] = &entry{sess: sess, proc: proc}
}

// Get returns the session for a handle.
func (m *Manager) Get(handle string) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[handle]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// Remove evicts a handle: the entry is dropped from the map, then its
// session is closed and the child reaped. Removing an unknown handle is a
// no-op.
func (m *Manager) Remove(handle string) {
	m.mu.Lock()
	e, ok := m.entries[handle]
	if ok {
		delete(m.entries, handle)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if err := e.sess.Close(); err != nil {
		logging.Warn("Clients", "Error closing session for %s: %v", handle, err)
	}
	e.proc.Teardown()
}

// Shutdown closes every session and reaps every child without touching
// the mount store, so persisted mounts replay on the next start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for handle, e := range entries {
		if err := e.sess.Close(); err != nil {
			logging.Warn("Clients", "Error closing session for %s: %v", handle, err)
		}
		e.proc.Teardown()
	}
}

// Len returns the number of registered handles.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
