package jsonrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"mcpdock/pkg/logging"
)

// Version is the JSON-RPC protocol version sent on every outbound message.
const Version = "2.0"

// maxLineBytes bounds a single inbound line. Tool results can be large, so
// the limit is generous; a child exceeding it terminates the stream.
const maxLineBytes = 4 * 1024 * 1024

// Request is an outbound JSON-RPC request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Notification is an outbound JSON-RPC notification (a request without id).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Error is the error member of a JSON-RPC response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Message is an inbound message after parsing. At most one of the two
// classifications holds: a response carries an ID and Result or Error, a
// notification carries a Method and no ID. A message with an ID but
// neither Result nor Error (such as a child-initiated request) is neither.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the message is a response to a request.
func (m *Message) IsResponse() bool {
	return m.ID != nil && (m.Result != nil || m.Error != nil)
}

// IsNotification reports whether the message is a server-initiated
// notification.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// Framer frames JSON-RPC messages over a byte-oriented bidirectional
// stream, one UTF-8 JSON object per newline-terminated line.
//
// Writes are serialized by an internal lock so that concurrent callers
// never interleave partial lines. Reads are expected from a single reader
// goroutine and are not locked.
type Framer struct {
	writeMu sync.Mutex
	w       io.Writer
	scanner *bufio.Scanner
	nextID  atomic.Int64

	// label identifies the peer in skipped-line diagnostics.
	label string
}

// NewFramer creates a framer reading inbound messages from r and writing
// outbound messages to w. The label is used in diagnostics only.
func NewFramer(r io.Reader, w io.Writer, label string) *Framer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Framer{
		w:       w,
		scanner: scanner,
		label:   label,
	}
}

// NextID returns the next request id. Ids are monotone per framer,
// starting at 1.
func (f *Framer) NextID() int64 {
	return f.nextID.Add(1)
}

// WriteRequest sends a request with the given id.
func (f *Framer) WriteRequest(id int64, method string, params interface{}) error {
	return f.writeLine(Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	})
}

// WriteNotification sends a notification (no id, no response expected).
func (f *Framer) WriteNotification(method string, params interface{}) error {
	return f.writeLine(Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	})
}

func (f *Framer) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads the next parseable message from the stream. Lines that
// fail to parse are logged and skipped; they never terminate the stream.
// EOF and read errors are returned to the caller and are terminal.
func (f *Framer) ReadMessage() (*Message, error) {
	for {
		if !f.scanner.Scan() {
			if err := f.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read message: %w", err)
			}
			return nil, io.EOF
		}

		line := f.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			logging.Warn("JSONRPC", "Discarding unparseable line from %s: %v", f.label, err)
			continue
		}
		return &msg, nil
	}
}
