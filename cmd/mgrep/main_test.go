package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mgrep/internal/searcher"
)

const pythonSource = `def greet(name):
    return "hi " + name

class Greeter:
    def hello(self):
        return "hello"
`

// isolate points configuration at a fresh directory
func isolate(t *testing.T, backend string) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MGREP_CONFIG", filepath.Join(home, "absent.toml"))
	t.Setenv("MGREP_STORE_PATH", filepath.Join(home, "data"))
	t.Setenv("MGREP_STORE_BACKEND", backend)
	t.Setenv("MGREP_EMBEDDING_PROVIDER", "local")
	t.Setenv("MGREP_EMBEDDING_DIMENSION", "")
	t.Setenv("MGREP_COLLECTION", "")
	t.Setenv("ES_INDEX", "")
	t.Setenv("MGREP_USER_ID", "")
	t.Setenv("FEATHERLESS_API_KEY", "")
	t.Setenv("MGREP_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mgrep dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestIndexSearchClean(t *testing.T) {
	for _, backend := range []string{"sqlite", "bleve"} {
		t.Run(backend, func(t *testing.T) {
			isolate(t, backend)

			project := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(project, "greet.py"), []byte(pythonSource), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(project, "notes.txt"), []byte("meeting notes about greetings\n"), 0o644))

			out, err := run(t, "index", project, "-p", "demo", "-u", "alice")
			require.NoError(t, err)
			assert.Contains(t, out, "Indexed 2 files")

			out, err = run(t, "search", "greet name", "-p", "demo", "-u", "alice", "--json")
			require.NoError(t, err)

			var resp searcher.Response
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, searcher.ModeVector, resp.Mode)
			require.NotEmpty(t, resp.Results)
			assert.Equal(t, "alice", resp.Results[0].Document.UserID)
			assert.Empty(t, resp.Results[0].Document.Embedding)

			out, err = run(t, "search", "greet name", "-u", "bob")
			require.NoError(t, err)
			assert.Contains(t, out, "No results found.")

			out, err = run(t, "clean", "-u", "alice", "-p", "demo")
			require.NoError(t, err)
			assert.Contains(t, out, "Deleted 4 documents")
		})
	}
}

func TestIndexSingleFile(t *testing.T) {
	isolate(t, "sqlite")

	path := filepath.Join(t.TempDir(), "greet.py")
	require.NoError(t, os.WriteFile(path, []byte(pythonSource), 0o644))

	out, err := run(t, "index", path, "-p", "demo", "--as", "src/greet.py")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed src/greet.py as code: 3 chunks (0 replaced)")

	out, err = run(t, "index", path, "-p", "demo", "--as", "src/greet.py")
	require.NoError(t, err)
	assert.Contains(t, out, "(3 replaced)")
}

func TestRecreateAfterDimensionChange(t *testing.T) {
	isolate(t, "sqlite")

	path := filepath.Join(t.TempDir(), "greet.py")
	require.NoError(t, os.WriteFile(path, []byte(pythonSource), 0o644))

	_, err := run(t, "index", path, "-p", "demo")
	require.NoError(t, err)

	t.Setenv("MGREP_EMBEDDING_DIMENSION", "128")
	_, err = run(t, "search", "greet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recreate")

	out, err := run(t, "recreate")
	require.NoError(t, err)
	assert.Contains(t, out, "dimension 128")

	out, err = run(t, "search", "greet")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestInvalidConfig(t *testing.T) {
	isolate(t, "redis")

	_, err := run(t, "search", "anything")
	assert.Error(t, err)
}

func TestDefaultProject(t *testing.T) {
	assert.Equal(t, "billing", defaultProject("/src/billing", true))
	assert.Equal(t, "billing", defaultProject("/src/billing/main.go", false))
}
