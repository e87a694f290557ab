package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Scope properties shared by most tools
func userIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Owner of the indexed content. Defaults to the server's configured user.",
	}
}

func projectNameProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// indexContentTool returns the tool definition for index_content
func indexContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_content",
		Description: "Index submitted source code text. Existing chunks of the same file are replaced.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id":      userIDProperty(),
				"project_name": projectNameProperty("Project the file belongs to"),
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file within the project; its extension selects the language",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full source text of the file",
				},
			},
			Required: []string{"project_name", "file_path", "content"},
		},
	}
}

// indexFileTool returns the tool definition for index_file
func indexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_file",
		Description: "Index a file or directory from disk. Code, documents (pdf, docx, md, txt, ...) and images are routed by extension.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id":      userIDProperty(),
				"project_name": projectNameProperty("Project the content belongs to"),
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a file or directory",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Name to store a single file under. Defaults to its path relative to the server's working directory, or its base name when it lies outside it; same-named files outside the working directory overwrite each other unless this is set. Ignored for directories.",
				},
				"include_vendor": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index vendor/ and node_modules/ directories",
					"default":     false,
				},
			},
			Required: []string{"project_name", "path"},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Semantic search over a user's indexed content, falling back to keyword search when vector retrieval fails",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id":      userIDProperty(),
				"project_name": projectNameProperty("Restrict results to one project (default: all of the user's projects)"),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// cleanTool returns the tool definition for clean
func cleanTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clean",
		Description: "Delete indexed documents of a user, optionally limited to one project, or of everyone",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id":      userIDProperty(),
				"project_name": projectNameProperty("Only delete this project's documents"),
				"delete_all": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, delete every document of every user",
					"default":     false,
				},
			},
		},
	}
}

// statusTool returns the tool definition for status
func statusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "status",
		Description: "Report the collection schema and how many documents a user or project has indexed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id":      userIDProperty(),
				"project_name": projectNameProperty("Count only this project"),
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Count only this file",
				},
			},
		},
	}
}
