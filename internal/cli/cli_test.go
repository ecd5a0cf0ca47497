package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
middleware: [gzip]
routes:
  - pattern: /hi
    module: hello
    name: hi
  - regexp: ^/ev
    module: events
`), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"routes", path})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "PATTERN")
	assert.Regexp(t, `/hi\s+hello\s+hi\s+\[echo greet index\]`, out.String())
	assert.Regexp(t, `~\^/ev\s+events`, out.String())
}

func TestRoutesCommandUnknownModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - pattern: /x\n    module: nope\n"), 0o600))

	rootCmd.SetArgs([]string{"routes", path})
	require.ErrorContains(t, rootCmd.Execute(), `unknown module: "nope"`)
}

func TestApplyFlags(t *testing.T) {
	t.Setenv("JSGI_PORT", "1")
	t.Setenv("JSGI_MOUNTPOINT", "/keep")
	t.Setenv("JSGI_STATIC_DIR", "")

	require.NoError(t, serveCmd.Flags().Parse([]string{"--port", "9999", "-s", "/srv/www"}))
	require.NoError(t, applyFlags(serveCmd.Flags()))

	assert.Equal(t, "9999", os.Getenv("JSGI_PORT"))
	assert.Equal(t, "/srv/www", os.Getenv("JSGI_STATIC_DIR"))
	assert.Equal(t, "/keep", os.Getenv("JSGI_MOUNTPOINT"))
}
