package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"mcpdock/internal/jsonrpc"
	"mcpdock/pkg/logging"
)

// Default deadlines for session operations. Handshake and listings get the
// long deadline; tool calls default shorter and are configurable per store.
const (
	DefaultInitializeTimeout = 30 * time.Second
	DefaultListTimeout       = 30 * time.Second
	DefaultCallTimeout       = 15 * time.Second
)

// clientName identifies this client in the initialize handshake.
const clientName = "mcpdock"

// Session is the stateful JSON-RPC client wrapped around one child's
// pipes. See the package documentation for the concurrency model.
type Session struct {
	name   string
	framer *jsonrpc.Framer
	stdin  io.WriteCloser

	callTimeout time.Duration

	mu          sync.Mutex
	pending     map[int64]chan *jsonrpc.Message
	closed      bool
	explicit    bool
	initialized bool
	serverInfo  ServerInfo
	onDeath     func(error)

	done chan struct{}
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithCallTimeout overrides the default tools/call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// New creates a session over the child's pipes and starts the background
// reader draining stdout. The name is used for diagnostics only.
func New(stdout io.Reader, stdin io.WriteCloser, name string, opts ...Option) *Session {
	s := &Session{
		name:        name,
		framer:      jsonrpc.NewFramer(stdout, stdin, name),
		stdin:       stdin,
		callTimeout: DefaultCallTimeout,
		pending:     make(map[int64]chan *jsonrpc.Message),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()
	return s
}

// SetTransportDeathHandler installs a callback invoked once, from its own
// goroutine, when the reader observes EOF or a read error that was not
// caused by an explicit Close. Must be set before the transport can die,
// i.e. right after New.
func (s *Session) SetTransportDeathHandler(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDeath = fn
}

// Initialized reports whether the MCP handshake has completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// ServerInfo returns the serverInfo the child reported during initialize.
func (s *Session) ServerInfo() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// readLoop is the single owner of the child's stdout. It classifies each
// inbound message and completes the matching waiter; responses with an
// unknown id and notifications are discarded.
func (s *Session) readLoop() {
	defer close(s.done)

	for {
		msg, err := s.framer.ReadMessage()
		if err != nil {
			s.failTransport(err)
			return
		}

		switch {
		case msg.IsResponse():
			s.mu.Lock()
			ch, ok := s.pending[*msg.ID]
			if ok {
				delete(s.pending, *msg.ID)
			}
			s.mu.Unlock()
			if !ok {
				logging.Warn("Session", "Discarding response with unknown id %d from %s", *msg.ID, s.name)
				continue
			}
			ch <- msg
		case msg.IsNotification():
			// Child-initiated notifications are a future extension point.
			logging.Debug("Session", "Ignoring notification %s from %s", msg.Method, s.name)
		default:
			logging.Warn("Session", "Discarding unclassifiable message from %s", s.name)
		}
	}
}

// failTransport marks the session closed and fails every pending waiter.
// Waiters observe the closed channel and surface ErrTransportClosed.
func (s *Session) failTransport(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	explicit := s.explicit
	onDeath := s.onDeath
	for id, ch := range s.pending {
		delete(s.pending, id)
		close(ch)
	}
	s.mu.Unlock()

	if !explicit {
		if errors.Is(cause, io.EOF) {
			logging.Info("Session", "Child %s closed its stdout", s.name)
		} else {
			logging.Warn("Session", "Transport failure on %s: %v", s.name, cause)
		}
		if onDeath != nil {
			go onDeath(cause)
		}
	}
}

// call issues a request and awaits its correlated response within the
// deadline. On timeout the waiter is removed and the session continues;
// on transport death the caller sees ErrTransportClosed.
func (s *Session) call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, ErrTransportClosed)
	}
	id := s.framer.NextID()
	ch := make(chan *jsonrpc.Message, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.framer.WriteRequest(id, method, params); err != nil {
		s.removeWaiter(id)
		s.failTransport(err)
		return nil, fmt.Errorf("%s: %w", method, ErrTransportClosed)
	}

	select {
	case <-ctx.Done():
		s.removeWaiter(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", method, ErrTimeout)
		}
		return nil, ctx.Err()
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: %w", method, ErrTransportClosed)
		}
		if msg.Error != nil {
			return nil, &RemoteError{
				Code:    msg.Error.Code,
				Message: msg.Error.Message,
				Data:    msg.Error.Data,
			}
		}
		return msg.Result, nil
	}
}

func (s *Session) removeWaiter(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Initialize performs the MCP protocol handshake: an initialize request
// followed by the notifications/initialized notification.
func (s *Session) Initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"clientInfo": map[string]interface{}{
			"name":    clientName,
			"version": "1.0.0",
		},
	}

	raw, err := s.call(ctx, "initialize", params, DefaultInitializeTimeout)
	if err != nil {
		return fmt.Errorf("initialize %s: %w", s.name, err)
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode initialize result from %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.initialized = true
	s.serverInfo = result.ServerInfo
	s.mu.Unlock()

	// Fire-and-forget; a child that chokes on this will fail later calls.
	if err := s.framer.WriteNotification("notifications/initialized", nil); err != nil {
		logging.Warn("Session", "Failed to send initialized notification to %s: %v", s.name, err)
	}

	logging.Debug("Session", "Initialized %s (server %s %s, protocol %s)",
		s.name, result.ServerInfo.Name, result.ServerInfo.Version, result.ProtocolVersion)
	return nil
}

// ListTools returns all tools advertised by the child.
func (s *Session) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	raw, err := s.call(ctx, "tools/list", nil, DefaultListTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools/list %s: %w", s.name, err)
	}

	var result struct {
		Tools []ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result from %s: %w", s.name, err)
	}
	return result.Tools, nil
}

// ListResources returns all resources advertised by the child.
func (s *Session) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	raw, err := s.call(ctx, "resources/list", nil, DefaultListTimeout)
	if err != nil {
		return nil, fmt.Errorf("resources/list %s: %w", s.name, err)
	}

	var result struct {
		Resources []ResourceInfo `json:"resources"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resources/list result from %s: %w", s.name, err)
	}
	return result.Resources, nil
}

// ListPrompts returns all prompts advertised by the child.
func (s *Session) ListPrompts(ctx context.Context) ([]PromptInfo, error) {
	raw, err := s.call(ctx, "prompts/list", nil, DefaultListTimeout)
	if err != nil {
		return nil, fmt.Errorf("prompts/list %s: %w", s.name, err)
	}

	var result struct {
		Prompts []PromptInfo `json:"prompts"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode prompts/list result from %s: %w", s.name, err)
	}
	return result.Prompts, nil
}

// CallTool executes a tool on the child and returns the decoded result.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallToolResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}

	raw, err := s.call(ctx, "tools/call", params, s.callTimeout)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s on %s: %w", name, s.name, err)
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/call result from %s: %w", s.name, err)
	}
	result.raw = raw
	return &result, nil
}

// Close shuts the session down: it fails pending waiters and closes the
// child's stdin, which signals the child to exit. Close is idempotent and
// does not wait for the child; the client manager reaps the process.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.explicit = true
	s.mu.Unlock()

	s.failTransport(ErrTransportClosed)
	return s.stdin.Close()
}

// Done is closed when the background reader has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
