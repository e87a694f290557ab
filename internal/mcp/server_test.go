package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mgrep/internal/embedder"
	"github.com/dshills/mgrep/internal/indexer"
	"github.com/dshills/mgrep/internal/lifecycle"
	"github.com/dshills/mgrep/internal/logging"
	"github.com/dshills/mgrep/internal/searcher"
	"github.com/dshills/mgrep/internal/storage"
)

const pythonSource = `def greet(name):
    return "hi " + name

class Greeter:
    def hello(self):
        return "hello"
`

func newTestServer(t *testing.T) *Server {
	store, err := storage.NewSQLiteStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(embedder.NewCache(100))
	require.NoError(t, err)

	logger := logging.Discard()
	const collection = "codesearch_index"

	lc := lifecycle.New(store, emb, collection, logger)
	require.NoError(t, lc.EnsureCollection(context.Background()))

	server, err := NewServer(Deps{
		Indexer:   indexer.New(indexer.Deps{Store: store, Embedder: emb, Logger: logger}, collection),
		Searcher:  searcher.New(store, emb, collection, searcher.DefaultConfig(), logger),
		Lifecycle: lc,
		UserID:    "local",
		Logger:    logger,
	})
	require.NoError(t, err)
	return server
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// call invokes a handler and decodes its JSON text result
func call(t *testing.T, h handler, args map[string]interface{}) (map[string]interface{}, error) {
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
	result, err := h(context.Background(), request)
	if err != nil {
		return nil, err
	}

	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded, nil
}

func requireCode(t *testing.T, err error, code int) {
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestToolDefinitions(t *testing.T) {
	tools := []mcp.Tool{indexContentTool(), indexFileTool(), searchTool(), cleanTool(), statusTool()}

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.Contains(t, tool.InputSchema.Properties, "user_id", tool.Name)
		for _, required := range tool.InputSchema.Required {
			assert.Contains(t, tool.InputSchema.Properties, required, tool.Name)
		}
	}
	assert.Equal(t, []string{"index_content", "index_file", "search", "clean", "status"}, names)
}

func TestIndexContentThenSearch(t *testing.T) {
	s := newTestServer(t)

	resp, err := call(t, s.handleIndexContent, map[string]interface{}{
		"user_id":      "alice",
		"project_name": "demo",
		"file_path":    "greet.py",
		"content":      pythonSource,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), resp["chunks_indexed"])
	assert.Equal(t, "code", resp["content_type"])

	resp, err = call(t, s.handleSearch, map[string]interface{}{
		"user_id": "alice",
		"query":   "greet name",
		"top_k":   float64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "vector", resp["mode"])

	results := resp["results"].([]interface{})
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "greet.py", first["file_path"])
	assert.Equal(t, float64(1), first["rank"])

	// Another user sees nothing
	resp, err = call(t, s.handleSearch, map[string]interface{}{
		"user_id": "bob",
		"query":   "greet name",
	})
	require.NoError(t, err)
	assert.Empty(t, resp["results"])
}

func TestIndexContent_Errors(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s.handleIndexContent, map[string]interface{}{
		"file_path": "greet.py",
		"content":   pythonSource,
	})
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = call(t, s.handleIndexContent, map[string]interface{}{
		"project_name": "demo",
		"file_path":    "notes.md",
		"content":      "# notes",
	})
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestIndexFile(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "greet.py")
	require.NoError(t, os.WriteFile(path, []byte(pythonSource), 0o644))

	resp, err := call(t, s.handleIndexFile, map[string]interface{}{
		"project_name": "demo",
		"path":         path,
	})
	require.NoError(t, err)
	assert.Equal(t, "greet.py", resp["file_path"])
	assert.Equal(t, "local", resp["user_id"])
	assert.Equal(t, float64(3), resp["chunks_indexed"])

	resp, err = call(t, s.handleIndexFile, map[string]interface{}{
		"project_name": "demo",
		"path":         path,
		"file_path":    "src/greet.py",
	})
	require.NoError(t, err)
	assert.Equal(t, "src/greet.py", resp["file_path"])
}

func TestIndexFile_SameNameInDifferentDirectories(t *testing.T) {
	s := newTestServer(t)
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, dir := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, "x.py"), []byte(pythonSource), 0o644))
	}
	t.Chdir(root)

	for _, rel := range []string{"a/x.py", "b/x.py"} {
		resp, err := call(t, s.handleIndexFile, map[string]interface{}{
			"project_name": "demo",
			"path":         filepath.Join(root, filepath.FromSlash(rel)),
		})
		require.NoError(t, err)
		assert.Equal(t, rel, resp["file_path"])
		assert.Equal(t, float64(0), resp["purged"])
	}

	resp, err := call(t, s.handleStatus, map[string]interface{}{"user_id": "local"})
	require.NoError(t, err)
	assert.Equal(t, float64(6), resp["documents"])
}

func TestIndexFile_Directory(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.py"), []byte(pythonSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Demo\n\nGreets people.\n"), 0o644))

	resp, err := call(t, s.handleIndexFile, map[string]interface{}{
		"user_id":      "alice",
		"project_name": "demo",
		"path":         dir,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(2), resp["files_indexed"])
	assert.Equal(t, float64(0), resp["files_failed"])
}

func TestIndexFile_Errors(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()

	_, err := call(t, s.handleIndexFile, map[string]interface{}{
		"project_name": "demo",
		"path":         "relative/greet.py",
	})
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = call(t, s.handleIndexFile, map[string]interface{}{
		"project_name": "demo",
		"path":         filepath.Join(dir, "missing.py"),
	})
	requireCode(t, err, ErrorCodePathNotFound)

	image := filepath.Join(dir, "diagram.png")
	require.NoError(t, os.WriteFile(image, []byte("not really a png"), 0o644))
	_, err = call(t, s.handleIndexFile, map[string]interface{}{
		"project_name": "demo",
		"path":         image,
	})
	requireCode(t, err, ErrorCodeNotConfigured)
}

func TestSearch_Errors(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s.handleSearch, map[string]interface{}{"query": ""})
	requireCode(t, err, ErrorCodeEmptyQuery)

	_, err = call(t, s.handleSearch, map[string]interface{}{"query": "x", "top_k": float64(500)})
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestCleanAndStatus(t *testing.T) {
	s := newTestServer(t)

	for _, scope := range []struct{ user, project string }{
		{"alice", "one"}, {"alice", "two"}, {"bob", "one"},
	} {
		_, err := call(t, s.handleIndexContent, map[string]interface{}{
			"user_id":      scope.user,
			"project_name": scope.project,
			"file_path":    "greet.py",
			"content":      pythonSource,
		})
		require.NoError(t, err)
	}

	resp, err := call(t, s.handleStatus, map[string]interface{}{"user_id": "alice"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["exists"])
	assert.Equal(t, float64(6), resp["documents"])

	resp, err = call(t, s.handleClean, map[string]interface{}{"user_id": "alice", "project_name": "one"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), resp["deleted"])

	resp, err = call(t, s.handleStatus, map[string]interface{}{"user_id": "alice"})
	require.NoError(t, err)
	assert.Equal(t, float64(3), resp["documents"])

	resp, err = call(t, s.handleClean, map[string]interface{}{"delete_all": true})
	require.NoError(t, err)
	assert.Equal(t, float64(6), resp["deleted"])
	assert.Equal(t, true, resp["dropped_all"])

	resp, err = call(t, s.handleStatus, map[string]interface{}{"user_id": "bob"})
	require.NoError(t, err)
	assert.Equal(t, true, resp["exists"])
	assert.Equal(t, float64(0), resp["documents"])
}

func TestToMCPError(t *testing.T) {
	err := toMCPError("indexing failed", indexer.ErrIndexingInProgress)
	requireCode(t, err, ErrorCodeIndexingInProgress)

	err = toMCPError("search failed", storage.ErrCollectionNotFound)
	requireCode(t, err, ErrorCodeNotIndexed)

	err = toMCPError("boom", errors.New("disk on fire"))
	requireCode(t, err, ErrorCodeInternalError)
	assert.Equal(t, "MCP error -32603: boom", err.Error())
}
