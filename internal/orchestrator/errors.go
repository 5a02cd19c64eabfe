package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of mount failure categories surfaced by the
// orchestrator.
type ErrorKind string

const (
	// KindEntryNotFound: unknown entry id at activate or deactivate.
	KindEntryNotFound ErrorKind = "EntryNotFound"
	// KindPrefixConflict: requested or derived prefix collides with an
	// active mount.
	KindPrefixConflict ErrorKind = "PrefixConflict"
	// KindAlreadyActive: activate invoked for an entry already mounted.
	KindAlreadyActive ErrorKind = "AlreadyActive"
	// KindLaunchFailed: container engine error or command spawn error.
	KindLaunchFailed ErrorKind = "LaunchFailed"
	// KindInitFailed: the MCP initialize handshake returned an error.
	KindInitFailed ErrorKind = "InitFailed"
	// KindTimeout: a deadline elapsed during activation.
	KindTimeout ErrorKind = "Timeout"
	// KindDiscoveryFailed: tools/list failed. Resource and prompt listing
	// failures are not fatal.
	KindDiscoveryFailed ErrorKind = "DiscoveryFailed"
	// KindRegistrationFailed: the aggregator refused a tool registration,
	// typically a duplicate name.
	KindRegistrationFailed ErrorKind = "RegistrationFailed"
)

// MountError is the structured failure returned from activate and
// deactivate: the kind, the entry it concerns and a one-line cause.
type MountError struct {
	Kind    ErrorKind
	EntryID string
	Err     error
}

func (e *MountError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.EntryID)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.EntryID, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

func mountErr(kind ErrorKind, entryID string, err error) *MountError {
	return &MountError{Kind: kind, EntryID: entryID, Err: err}
}

// KindOf extracts the error kind from an orchestrator error, or "" when
// the error is not a MountError.
func KindOf(err error) ErrorKind {
	var me *MountError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
