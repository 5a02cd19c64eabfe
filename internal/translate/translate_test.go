package translate

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

	"mcpdock/internal/clients"
	"mcpdock/internal/launcher"
	"mcpdock/internal/session"
	"mcpdock/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForCLI(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

func schemaDef(name string, schema map[string]interface{}) session.ToolDefinition {
	return session.ToolDefinition{Name: name, Description: "a tool", InputSchema: schema}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{"type": "object"}
	if properties != nil {
		s["properties"] = properties
	}
	if required != nil {
		reqs := make([]interface{}, len(required))
		for i, r := range required {
			reqs[i] = r
		}
		s["required"] = reqs
	}
	return s
}

func TestTranslate_Validation(t *testing.T) {
	manager := clients.NewManager()

	tests := []struct {
		name string
		def  session.ToolDefinition
	}{
		{"empty name", schemaDef("", objectSchema(nil))},
		{"nil schema", session.ToolDefinition{Name: "t"}},
		{"missing type", schemaDef("t", map[string]interface{}{"properties": map[string]interface{}{}})},
		{"non-object type", schemaDef("t", map[string]interface{}{"type": "array"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.def, "p", "h", manager)
			assert.Error(t, err)
		})
	}
}

func TestTranslate_NameAndDescription(t *testing.T) {
	manager := clients.NewManager()

	inv, err := Translate(schemaDef("read_query", objectSchema(nil)), "sq", "h1", manager)
	require.NoError(t, err)

	assert.Equal(t, "mcp_sq_read_query", inv.FullName)
	assert.Equal(t, "read_query", inv.ShortName)
	assert.Equal(t, "a tool", inv.Description)
	assert.Empty(t, inv.Params)
}

func TestTranslate_TypeMapping(t *testing.T) {
	tests := []struct {
		name     string
		schema   interface{}
		wantType string
	}{
		{"string", "string", "string"},
		{"integer", "integer", "integer"},
		{"number", "number", "number"},
		{"boolean", "boolean", "boolean"},
		{"object", "object", "object"},
		{"array", "array", "array"},
		{"null", "null", "null"},
		{"nullable integer", []interface{}{"integer", "null"}, "integer"},
		{"null first", []interface{}{"null", "string"}, "string"},
		{"wider union", []interface{}{"string", "integer", "null"}, "string"},
		{"unknown type", "whatever", "object"},
	}

	manager := clients.NewManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := schemaDef("t", objectSchema(map[string]interface{}{
				"v": map[string]interface{}{"type": tt.schema},
			}))
			inv, err := Translate(def, "p", "h", manager)
			require.NoError(t, err)
			require.Len(t, inv.Params, 1)
			assert.Equal(t, tt.wantType, inv.Params[0].Type)
		})
	}
}

func TestTranslate_ParameterRules(t *testing.T) {
	manager := clients.NewManager()

	def := schemaDef("t", objectSchema(map[string]interface{}{
		"must":    map[string]interface{}{"type": "string", "description": "required one"},
		"dflt":    map[string]interface{}{"type": "integer", "default": float64(5)},
		"absent":  map[string]interface{}{"type": "string"},
		"opt-int": map[string]interface{}{"type": []interface{}{"integer", "null"}},
	}, "must"))

	inv, err := Translate(def, "p", "h", manager)
	require.NoError(t, err)
	require.Len(t, inv.Params, 4)

	byName := make(map[string]Parameter)
	for _, p := range inv.Params {
		byName[p.OriginalName] = p
	}

	must := byName["must"]
	assert.True(t, must.Required)
	assert.False(t, must.HasDefault)
	assert.Equal(t, "required one", must.Description)

	dflt := byName["dflt"]
	assert.False(t, dflt.Required)
	assert.True(t, dflt.HasDefault)
	assert.Equal(t, float64(5), dflt.Default)

	absent := byName["absent"]
	assert.False(t, absent.Required)
	assert.False(t, absent.HasDefault)

	optInt := byName["opt-int"]
	assert.Equal(t, "integer", optInt.Type)
	assert.False(t, optInt.Required)
	assert.False(t, optInt.HasDefault)
	assert.Equal(t, "opt_int", optInt.Name, "surface name is sanitized")
}

func TestTranslate_SanitizesNamesKeepsOriginals(t *testing.T) {
	manager := clients.NewManager()

	def := schemaDef("t", objectSchema(map[string]interface{}{
		"weird-name.here": map[string]interface{}{"type": "string"},
	}))

	inv, err := Translate(def, "p", "h", manager)
	require.NoError(t, err)
	require.Len(t, inv.Params, 1)
	assert.Equal(t, "weird_name_here", inv.Params[0].Name)
	assert.Equal(t, "weird-name.here", inv.Params[0].OriginalName)
}

// fakeTool runs a pipe-backed session that records the arguments of the
// tools/call it receives and returns a fixed text result.
func fakeTool(t *testing.T) (*clients.Manager, string, *map[string]interface{}) {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	captured := &map[string]interface{}{}
	var mu sync.Mutex
	go func() {
		dec := json.NewDecoder(stdinR)
		for {
			var req map[string]interface{}
			if err := dec.Decode(&req); err != nil {
				return
			}
			if req["method"] != "tools/call" {
				continue
			}
			params := req["params"].(map[string]interface{})
			mu.Lock()
			*captured = params["arguments"].(map[string]interface{})
			mu.Unlock()
			id := int64(req["id"].(float64))
			fmt.Fprintf(stdoutW, `{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":"done"}]}}%s`, id, "\n")
		}
	}()

	sess := session.New(stdoutR, stdinW, "fake", session.WithCallTimeout(2*time.Second))
	t.Cleanup(func() {
		_ = sess.Close()
		stdoutW.Close()
		stdinR.Close()
	})

	manager := clients.NewManager()
	handle := "h-test"
	manager.Register(handle, sess, &launcher.Process{Handle: handle, Stdin: stdinW, Stdout: stdoutR})
	return manager, handle, captured
}

func TestInvocable_ExecuteRoundTrip(t *testing.T) {
	manager, handle, captured := fakeTool(t)

	def := schemaDef("read_query", objectSchema(map[string]interface{}{
		"query":      map[string]interface{}{"type": "string"},
		"max-rows":   map[string]interface{}{"type": "integer", "default": float64(100)},
		"verbose":    map[string]interface{}{"type": "boolean"},
		"extra_opts": map[string]interface{}{"type": "object"},
	}, "query"))

	inv, err := Translate(def, "sq", handle, manager)
	require.NoError(t, err)

	text, err := inv.Execute(context.Background(), map[string]interface{}{
		"query":    "SELECT 1",
		"max_rows": float64(10),
		// verbose and extra_opts omitted: dropped from outgoing args
	})
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	// Sanitized keys map back to originals; omitted optionals are absent.
	assert.Equal(t, map[string]interface{}{
		"query":    "SELECT 1",
		"max-rows": float64(10),
	}, *captured)
}

func TestInvocable_ExecuteZeroParams(t *testing.T) {
	manager, handle, captured := fakeTool(t)

	inv, err := Translate(schemaDef("list_tables", objectSchema(map[string]interface{}{})), "sq", handle, manager)
	require.NoError(t, err)
	require.Empty(t, inv.Params)

	_, err = inv.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, *captured)
}

func TestInvocable_ExecuteNoSession(t *testing.T) {
	manager := clients.NewManager()

	inv, err := Translate(schemaDef("t", objectSchema(nil)), "p", "gone", manager)
	require.NoError(t, err)

	_, err = inv.Execute(context.Background(), nil)
	assert.Error(t, err)
}
