package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/mgrep/internal/indexer"
	"github.com/dshills/mgrep/internal/lifecycle"
	"github.com/dshills/mgrep/internal/searcher"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Path does not exist or cannot be read
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Collection does not exist
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeNotConfigured      = -32005 // Optional capability (vision) is not configured
	ErrorCodeExtractionFailed   = -32006 // Document text could not be extracted
	ErrorCodeSearchFailed       = -32007 // Both retrieval stages failed
)

// maxTopK bounds the top_k parameter
const maxTopK = 100

// handleIndexContent handles the index_content tool invocation
func (s *Server) handleIndexContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectName, err := requireString(args, "project_name")
	if err != nil {
		return nil, err
	}
	filePath, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing",
		})
	}
	userID := s.userID(args)

	result, err := s.indexer.IndexContent(ctx, userID, projectName, filePath, content)
	if err != nil {
		return nil, toMCPError("indexing failed", err)
	}

	return mcp.NewToolResultText(formatJSON(resultResponse(userID, projectName, result))), nil
}

// handleIndexFile handles the index_file tool invocation
func (s *Server) handleIndexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectName, err := requireString(args, "project_name")
	if err != nil {
		return nil, err
	}
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}

	info, err := validatePath(path)
	if err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrPathNotReadable) {
			code = ErrorCodePathNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	userID := s.userID(args)

	if info.IsDir() {
		config := &indexer.Config{
			IncludeVendor: getBoolDefault(args, "include_vendor", false),
		}
		stats, err := s.indexer.IndexDirectory(ctx, userID, projectName, path, config)
		if err != nil {
			return nil, toMCPError("indexing failed", err)
		}
		return mcp.NewToolResultText(formatJSON(statisticsResponse(userID, projectName, stats))), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, newMCPError(ErrorCodePathNotFound, "failed to read file", map[string]interface{}{
			"param": "path",
			"error": err.Error(),
		})
	}

	filePath := getStringDefault(args, "file_path", indexer.StoredPath(path))
	result, err := s.indexer.IndexFile(ctx, userID, projectName, filePath, content)
	if err != nil {
		return nil, toMCPError("indexing failed", err)
	}

	return mcp.NewToolResultText(formatJSON(resultResponse(userID, projectName, result))), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", 0)
	if topK < 0 || topK > maxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{
		UserID:      s.userID(args),
		Query:       query,
		ProjectName: getStringDefault(args, "project_name", ""),
		TopK:        topK,
	})
	if err != nil {
		return nil, toMCPError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":          r.Rank,
			"score":         r.Score,
			"project_name":  r.Document.ProjectName,
			"file_path":     r.Document.FilePath,
			"content_type":  r.Document.ContentType,
			"language":      r.Document.Language,
			"class_name":    r.Document.ClassName,
			"function_name": r.Document.FunctionName,
			"line_start":    r.Document.LineStart,
			"line_end":      r.Document.LineEnd,
			"content":       r.Document.CodeContent,
		})
	}

	response := map[string]interface{}{
		"query":       query,
		"mode":        resp.Mode,
		"total":       len(results),
		"results":     results,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if resp.FallbackReason != "" {
		response["fallback_reason"] = resp.FallbackReason
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClean handles the clean tool invocation
func (s *Server) handleClean(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	deleteAll := getBoolDefault(args, "delete_all", false)
	userID := ""
	if !deleteAll {
		userID = s.userID(args)
	}
	projectName := getStringDefault(args, "project_name", "")

	result, err := s.lifecycle.Clean(ctx, userID, projectName, deleteAll)
	if err != nil {
		return nil, toMCPError("clean failed", err)
	}

	response := map[string]interface{}{
		"deleted":     result.Deleted,
		"dropped_all": result.DroppedAll,
	}
	if !deleteAll {
		response["user_id"] = userID
		if projectName != "" {
			response["project_name"] = projectName
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStatus handles the status tool invocation
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	filters := types.Filters{
		UserID:      s.userID(args),
		ProjectName: getStringDefault(args, "project_name", ""),
		FilePath:    getStringDefault(args, "file_path", ""),
	}

	stats, err := s.lifecycle.Stats(ctx, filters)
	if err != nil {
		return nil, toMCPError("failed to get status", err)
	}

	return mcp.NewToolResultText(formatJSON(statusResponse(filters, stats))), nil
}

// Helper functions

func resultResponse(userID, projectName string, result *indexer.Result) map[string]interface{} {
	return map[string]interface{}{
		"indexed":        true,
		"user_id":        userID,
		"project_name":   projectName,
		"file_path":      result.FilePath,
		"content_type":   result.ContentType,
		"purged":         result.Purged,
		"chunks_indexed": result.ChunksIndexed,
		"duration_ms":    result.Duration.Milliseconds(),
	}
}

func statisticsResponse(userID, projectName string, stats *indexer.Statistics) map[string]interface{} {
	response := map[string]interface{}{
		"indexed":          true,
		"user_id":          userID,
		"project_name":     projectName,
		"files_indexed":    stats.FilesIndexed,
		"files_skipped":    stats.FilesSkipped,
		"files_failed":     stats.FilesFailed,
		"chunks_created":   stats.ChunksCreated,
		"documents_purged": stats.DocumentsPurged,
		"duration_ms":      stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return response
}

func statusResponse(filters types.Filters, stats *lifecycle.Stats) map[string]interface{} {
	scope := map[string]interface{}{"user_id": filters.UserID}
	if filters.ProjectName != "" {
		scope["project_name"] = filters.ProjectName
	}
	if filters.FilePath != "" {
		scope["file_path"] = filters.FilePath
	}

	response := map[string]interface{}{
		"collection": stats.Collection,
		"exists":     stats.Exists,
		"scope":      scope,
		"documents":  stats.Documents,
	}
	if stats.Exists {
		response["schema"] = map[string]interface{}{
			"dimension": stats.Dimension,
			"version":   stats.SchemaVersion,
		}
	}
	return response
}

// userID returns the user_id argument or the server default
func (s *Server) userID(args map[string]interface{}) string {
	return getStringDefault(args, "user_id", s.defaultUser)
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// toMCPError maps a domain error to its MCP error code
func toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrUnsupportedType),
		errors.Is(err, storage.ErrInvalidCollection):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrCapabilityNotConfigured):
		code = ErrorCodeNotConfigured
	case errors.Is(err, indexer.ErrIndexingInProgress):
		code = ErrorCodeIndexingInProgress
	case errors.Is(err, storage.ErrCollectionNotFound):
		code = ErrorCodeNotIndexed
	case errors.Is(err, types.ErrExtractionFailed):
		code = ErrorCodeExtractionFailed
	case errors.Is(err, types.ErrSearchFailed):
		code = ErrorCodeSearchFailed
	}

	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// validatePath checks that path is absolute, exists and is readable
func validatePath(path string) (os.FileInfo, error) {
	if path == "" {
		return nil, ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return nil, ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, ErrPathNotFound
	}
	if err != nil {
		return nil, ErrPathNotReadable
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ErrPathNotReadable
	}
	_ = f.Close()

	return info, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a non-empty string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
)
