// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the assembled testcase store for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"caseport/internal/store"
)

// Server wraps the MCP server with caseport tools.
type Server struct {
	mcp *server.MCPServer
	db  *store.Store
}

// New creates a new MCP server with the testcase tools registered.
func New(db *store.Store) *Server {
	s := &Server{db: db}

	s.mcp = server.NewMCPServer(
		"caseport",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_testcases",
		mcp.WithDescription("List assembled testcase records (id, title, outcome)."),
		mcp.WithString("limit", mcp.Description("Maximum number of records to return (default 50)")),
	), s.listTestcases)

	s.mcp.AddTool(mcp.NewTool("get_testcase",
		mcp.WithDescription("Get one assembled testcase record, including its fields and steps."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Testcase id (e.g. tests/test_login.py::test_login)")),
	), s.getTestcase)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listTestcases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 50
	if v, err := req.RequireString("limit"); err == nil {
		if _, scanErr := fmt.Sscanf(v, "%d", &limit); scanErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid limit: %q", v)), nil
		}
	}

	rows, err := s.db.List(limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type summary struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Outcome string `json:"outcome,omitempty"`
	}
	out := make([]summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summary{ID: r.ID, Title: r.Title, Outcome: r.Outcome})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getTestcase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	row, err := s.db.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if row == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}

	data, _ := json.MarshalIndent(row, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}
