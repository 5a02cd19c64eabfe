package jsonrpc

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdock/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForCLI(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

func TestFramer_NextIDMonotone(t *testing.T) {
	f := NewFramer(strings.NewReader(""), &bytes.Buffer{}, "test")

	assert.Equal(t, int64(1), f.NextID())
	assert.Equal(t, int64(2), f.NextID())
	assert.Equal(t, int64(3), f.NextID())
}

func TestFramer_WriteRequest(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(strings.NewReader(""), &buf, "test")

	err := f.WriteRequest(7, "tools/call", map[string]interface{}{
		"name":      "read_query",
		"arguments": map[string]interface{}{"query": "SELECT 1"},
	})
	require.NoError(t, err)

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"), "message must be newline-terminated")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, float64(7), decoded["id"])
	assert.Equal(t, "tools/call", decoded["method"])

	params := decoded["params"].(map[string]interface{})
	assert.Equal(t, "read_query", params["name"])
	assert.Equal(t, map[string]interface{}{"query": "SELECT 1"}, params["arguments"])
}

func TestFramer_WriteNotificationHasNoID(t *testing.T) {
	var buf bytes.Buffer
	f := NewFramer(strings.NewReader(""), &buf, "test")

	require.NoError(t, f.WriteNotification("notifications/initialized", nil))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	_, hasID := decoded["id"]
	assert.False(t, hasID, "notifications must not carry an id")
	assert.Equal(t, "notifications/initialized", decoded["method"])
}

func TestFramer_ReadMessageClassification(t *testing.T) {
	tests := []struct {
		name           string
		line           string
		isResponse     bool
		isNotification bool
	}{
		{
			name:       "result response",
			line:       `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`,
			isResponse: true,
		},
		{
			name:       "error response",
			line:       `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"not found"}}`,
			isResponse: true,
		},
		{
			name:           "notification",
			line:           `{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`,
			isNotification: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(strings.NewReader(tt.line+"\n"), &bytes.Buffer{}, "test")
			msg, err := f.ReadMessage()
			require.NoError(t, err)
			assert.Equal(t, tt.isResponse, msg.IsResponse())
			assert.Equal(t, tt.isNotification, msg.IsNotification())
		})
	}
}

func TestFramer_ReadMessageSkipsGarbage(t *testing.T) {
	input := "this is not json\n" +
		"{\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n" +
		"{{{{\n" +
		"{\"jsonrpc\":\"2.0\",\"id\":2,\"result\":{}}\n"
	f := NewFramer(strings.NewReader(input), &bytes.Buffer{}, "test")

	msg, err := f.ReadMessage()
	require.NoError(t, err)
	require.NotNil(t, msg.ID)
	assert.Equal(t, int64(1), *msg.ID)

	msg, err = f.ReadMessage()
	require.NoError(t, err)
	require.NotNil(t, msg.ID)
	assert.Equal(t, int64(2), *msg.ID)

	_, err = f.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramer_ReadMessageEOF(t *testing.T) {
	f := NewFramer(strings.NewReader(""), &bytes.Buffer{}, "test")
	_, err := f.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramer_SkipsEmptyLines(t *testing.T) {
	input := "\n\n{\"jsonrpc\":\"2.0\",\"id\":5,\"result\":{}}\n"
	f := NewFramer(strings.NewReader(input), &bytes.Buffer{}, "test")

	msg, err := f.ReadMessage()
	require.NoError(t, err)
	require.NotNil(t, msg.ID)
	assert.Equal(t, int64(5), *msg.ID)
}
