package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTransportClosed indicates the child's stdio transport is gone: EOF on
// stdout, a write failure on stdin, or an explicit Close. Pending waiters
// are failed with this error when the transport dies.
var ErrTransportClosed = errors.New("transport closed")

// ErrTimeout indicates an operation's deadline elapsed before the matching
// response arrived. The waiter has been removed; the session stays usable.
var ErrTimeout = errors.New("operation timed out")

// RemoteError is a JSON-RPC error object returned by the child in a
// response. The mount stays active; the error is surfaced to the caller.
type RemoteError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}
