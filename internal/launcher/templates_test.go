package launcher

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdock/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForCLI(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

func TestRenderEnv_Passthrough(t *testing.T) {
	out, err := renderEnv(map[string]string{
		"PLAIN":  "value",
		"BRACES": "not {a} template",
	})
	require.NoError(t, err)
	assert.Equal(t, "value", out["PLAIN"])
	assert.Equal(t, "not {a} template", out["BRACES"])
}

func TestRenderEnv_TemplateExpansion(t *testing.T) {
	t.Setenv("MCPDOCK_TEST_HOME", "/home/tester")

	out, err := renderEnv(map[string]string{
		"DATA_DIR": `{{ env "MCPDOCK_TEST_HOME" }}/data`,
		"UPPER":    `{{ upper "ro" }}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/data", out["DATA_DIR"])
	assert.Equal(t, "RO", out["UPPER"])
}

func TestRenderEnv_BadTemplate(t *testing.T) {
	_, err := renderEnv(map[string]string{"BAD": `{{ unterminated`})
	assert.Error(t, err)
}

func TestRenderEnv_Empty(t *testing.T) {
	out, err := renderEnv(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestContainerName(t *testing.T) {
	name := containerName("SQLite Server")
	assert.Regexp(t, `^mcpdock-sqlite-server-[0-9a-f-]{8}$`, name)

	other := containerName("SQLite Server")
	assert.NotEqual(t, name, other, "container names are unique per spawn")
}
