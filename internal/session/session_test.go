package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdock/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForCLI(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

// fakeChild simulates an MCP server on the far side of a pipe pair. Each
// inbound request line is passed to handle; whatever handle returns is
// written back, one line per element.
type fakeChild struct {
	stdinR  *io.PipeReader // what the session wrote
	stdoutW *io.PipeWriter // what the child answers with

	mu sync.Mutex
}

func newFakeChild(t *testing.T, handle func(req map[string]interface{}) []string) (*Session, *fakeChild) {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	child := &fakeChild{stdinR: stdinR, stdoutW: stdoutW}
	go func() {
		dec := json.NewDecoder(stdinR)
		for {
			var req map[string]interface{}
			if err := dec.Decode(&req); err != nil {
				return
			}
			if handle == nil {
				continue
			}
			for _, line := range handle(req) {
				child.mu.Lock()
				fmt.Fprintln(stdoutW, line)
				child.mu.Unlock()
			}
		}
	}()

	sess := New(stdoutR, stdinW, "fake", WithCallTimeout(2*time.Second))
	t.Cleanup(func() {
		_ = sess.Close()
		stdoutW.Close()
		stdinR.Close()
	})
	return sess, child
}

// respond builds a result response line for a request.
func respond(req map[string]interface{}, result string) string {
	id := int64(req["id"].(float64))
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id, result)
}

// mcpHandler answers the standard handshake and listing methods.
func mcpHandler(tools string) func(req map[string]interface{}) []string {
	return func(req map[string]interface{}) []string {
		switch req["method"] {
		case "initialize":
			return []string{respond(req,
				`{"protocolVersion":"2024-11-05","capabilities":{"tools":{}},"serverInfo":{"name":"fake","version":"0.1"}}`)}
		case "notifications/initialized":
			return nil
		case "tools/list":
			return []string{respond(req, fmt.Sprintf(`{"tools":%s}`, tools))}
		case "resources/list":
			return []string{respond(req, `{"resources":[{"uri":"db://schema","name":"schema"}]}`)}
		case "prompts/list":
			return []string{respond(req, `{"prompts":[{"name":"explain"}]}`)}
		default:
			return nil
		}
	}
}

func TestSession_InitializeHandshake(t *testing.T) {
	var sawInitialized bool
	var mu sync.Mutex

	sess, _ := newFakeChild(t, func(req map[string]interface{}) []string {
		switch req["method"] {
		case "initialize":
			params := req["params"].(map[string]interface{})
			if params["protocolVersion"] != "2024-11-05" {
				return []string{respond(req, `{"error":"bad version"}`)}
			}
			return []string{respond(req,
				`{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"sqlite","version":"1.2"}}`)}
		case "notifications/initialized":
			mu.Lock()
			sawInitialized = true
			mu.Unlock()
			return nil
		}
		return nil
	})

	require.NoError(t, sess.Initialize(context.Background()))
	assert.True(t, sess.Initialized())
	assert.Equal(t, "sqlite", sess.ServerInfo().Name)

	// The initialized notification is fire-and-forget; give the child a
	// moment to observe it.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sawInitialized
	}, time.Second, 10*time.Millisecond)
}

func TestSession_ListTools(t *testing.T) {
	sess, _ := newFakeChild(t, mcpHandler(
		`[{"name":"read_query","description":"Run a read-only query","inputSchema":{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}},`+
			`{"name":"list_tables","inputSchema":{"type":"object","properties":{}}}]`))

	require.NoError(t, sess.Initialize(context.Background()))

	tools, err := sess.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "read_query", tools[0].Name)
	assert.Equal(t, "Run a read-only query", tools[0].Description)
	assert.Equal(t, "object", tools[0].InputSchema["type"])
	assert.Equal(t, "list_tables", tools[1].Name)
}

func TestSession_CallToolRoundTrip(t *testing.T) {
	sess, _ := newFakeChild(t, func(req map[string]interface{}) []string {
		if req["method"] != "tools/call" {
			return mcpHandler("[]")(req)
		}
		params := req["params"].(map[string]interface{})
		if params["name"] != "read_query" {
			return []string{respond(req, `{"content":[]}`)}
		}
		args := params["arguments"].(map[string]interface{})
		if args["query"] != "SELECT 1" {
			return []string{respond(req, `{"content":[{"type":"text","text":"wrong args"}]}`)}
		}
		return []string{respond(req, `{"content":[{"type":"text","text":"[{\"1\":1}]"}]}`)}
	})

	result, err := sess.CallTool(context.Background(), "read_query", map[string]interface{}{"query": "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, `[{"1":1}]`, result.Text())
}

func TestSession_RemoteError(t *testing.T) {
	sess, _ := newFakeChild(t, func(req map[string]interface{}) []string {
		id := int64(req["id"].(float64))
		return []string{fmt.Sprintf(
			`{"jsonrpc":"2.0","id":%d,"error":{"code":-32000,"message":"table missing","data":{"table":"t"}}}`, id)}
	})

	_, err := sess.CallTool(context.Background(), "read_query", nil)
	require.Error(t, err)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, -32000, remote.Code)
	assert.Equal(t, "table missing", remote.Message)
}

func TestSession_Timeout(t *testing.T) {
	// Child accepts stdin but never writes to stdout.
	sess, _ := newFakeChild(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := sess.CallTool(ctx, "read_query", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	// A timeout removes the waiter for the timed-out id and leaves the
	// session open; this test checks only the timeout error and latency.
}

func TestSession_GarbageInterleaved(t *testing.T) {
	sess, _ := newFakeChild(t, func(req map[string]interface{}) []string {
		return []string{
			"!!!! not json at all",
			respond(req, `{"content":[{"type":"text","text":"ok"}]}`),
		}
	})

	result, err := sess.CallTool(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text())
}

func TestSession_UnknownIDDiscarded(t *testing.T) {
	sess, _ := newFakeChild(t, func(req map[string]interface{}) []string {
		return []string{
			`{"jsonrpc":"2.0","id":9999,"result":{"stray":true}}`,
			respond(req, `{"content":[{"type":"text","text":"real"}]}`),
		}
	})

	result, err := sess.CallTool(context.Background(), "t", nil)
	require.NoError(t, err)
	assert.Equal(t, "real", result.Text())
}

func TestSession_ConcurrentCallsCorrelated(t *testing.T) {
	// The child answers in reverse arrival order, so correlation must be
	// by id, not ordering.
	var pending []map[string]interface{}
	var mu sync.Mutex

	sess, child := newFakeChild(t, func(req map[string]interface{}) []string {
		mu.Lock()
		defer mu.Unlock()
		pending = append(pending, req)
		if len(pending) < 3 {
			return nil
		}
		var lines []string
		for i := len(pending) - 1; i >= 0; i-- {
			r := pending[i]
			args := r["params"].(map[string]interface{})["arguments"].(map[string]interface{})
			lines = append(lines, respond(r, fmt.Sprintf(
				`{"content":[{"type":"text","text":"echo-%v"}]}`, args["n"])))
		}
		return lines
	})
	_ = child

	var wg sync.WaitGroup
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := sess.CallTool(context.Background(), "echo", map[string]interface{}{"n": n})
			if !assert.NoError(t, err) {
				return
			}
			results[n] = res.Text()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"echo-0", "echo-1", "echo-2"}, results)
}

func TestSession_EOFFailsPendingWaiters(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	defer stdinR.Close()

	sess := New(stdoutR, stdinW, "dying", WithCallTimeout(5*time.Second))

	died := make(chan error, 1)
	sess.SetTransportDeathHandler(func(err error) { died <- err })

	go func() {
		// Swallow the request, then die.
		buf := make([]byte, 1024)
		_, _ = stdinR.Read(buf)
		stdoutW.Close()
	}()

	_, err := sess.CallTool(context.Background(), "t", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportClosed)

	select {
	case <-died:
	case <-time.After(time.Second):
		t.Fatal("transport death handler not invoked")
	}

	// Further calls fail fast on the closed session.
	_, err = sess.CallTool(context.Background(), "t", nil)
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestSession_CloseIdempotent(t *testing.T) {
	sess, _ := newFakeChild(t, mcpHandler("[]"))

	require.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())

	_, err := sess.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestCallToolResult_TextFallsBackToRaw(t *testing.T) {
	r := &CallToolResult{raw: json.RawMessage(`{"weird":true}`)}
	assert.Equal(t, `{"weird":true}`, r.Text())
}
