// Package mcp exposes mgrep over the Model Context Protocol.
//
// The server speaks JSON-RPC 2.0 on stdio and registers five tools:
//   - index_content: index submitted source text for one file
//   - index_file: index a file or directory from disk, routed by extension
//   - search: scoped semantic search with keyword fallback
//   - clean: delete a user's or project's documents, or everything
//   - status: collection schema and scope document counts
//
// Every tool accepts an optional user_id; requests that omit it act on
// behalf of the user the server was started for. Failures are returned as
// *MCPError values whose codes tell input problems (-32602) apart from
// missing capabilities (-32005), unreadable paths (-32001) and concurrent
// directory runs (-32002).
//
// Example request:
//
//	{
//	  "name": "search",
//	  "arguments": {
//	    "user_id": "alice",
//	    "project_name": "billing",
//	    "query": "where are invoices rounded",
//	    "top_k": 5
//	  }
//	}
package mcp
