package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescribe-dev/codescribe/internal/analyze"
)

// Server exposes the analyzer as MCP tools.
type Server struct {
	mcp      *mcp.Server
	analyzer *analyze.Analyzer
}

// NewServer registers every analysis tool on a fresh MCP server.
func NewServer(a *analyze.Analyzer, version string) *Server {
	srv := &Server{
		analyzer: a,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "codescribe",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	// 1. visualize_call_graph
	s.mcp.AddTool(&mcp.Tool{
		Name:        "visualize_call_graph",
		Description: "Build the function call graph of one Python snippet. Returns nodes, edges and metadata plus Mermaid (graph TD) and Graphviz DOT renderings. Calls are attributed to the innermost enclosing function; callees never defined in the snippet appear as external nodes.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"description": "Python source code"
				}
			},
			"required": ["code"]
		}`),
	}, s.handleVisualizeCallGraph)

	// 2. analyze_project
	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_project",
		Description: "Build a cross-file call graph for a Python project given as a directory or a .zip/.tar.gz archive. Calls resolve by name to every top-level function sharing it (best-effort, no import analysis). Also counts embedded SQL queries per file. Archives with entries escaping the extraction directory are rejected.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Absolute path to a project directory or archive"
				}
			},
			"required": ["path"]
		}`),
	}, s.handleAnalyzeProject)

	// 3. extract_sql_queries
	s.mcp.AddTool(&mcp.Tool{
		Name:        "extract_sql_queries",
		Description: "List string literals in Python source that look like SQL statements (SELECT, INSERT, UPDATE, DELETE, CREATE/ALTER/DROP TABLE, WITH, MERGE). Formatted strings are split at interpolation slots. Each query reports whether it parses as SQL.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"description": "Python source code"
				}
			},
			"required": ["code"]
		}`),
	}, s.handleExtractSQL)

	// 4. trace_execution
	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_execution",
		Description: "Execute Python code followed by a driver snippet in a restricted child interpreter and return a per-line log of local variables plus captured stdout. Only a small set of builtins is available; execution is bounded by a time budget.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"description": "Python source defining the code under trace"
				},
				"trace_input": {
					"type": "string",
					"description": "Driver statements executed after the code, e.g. 'print(add(1, 2))'"
				}
			},
			"required": ["code"]
		}`),
	}, s.handleTraceExecution)

	// 5. analyze_snippet
	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_snippet",
		Description: "Run the call graph, SQL extraction and (when trace_input is given) the execution trace over one snippet in a single call.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"description": "Python source code"
				},
				"trace_input": {
					"type": "string",
					"description": "Optional driver statements for the trace"
				}
			},
			"required": ["code"]
		}`),
	}, s.handleAnalyzeSnippet)

	// 6. isolate_function
	s.mcp.AddTool(&mcp.Tool{
		Name:        "isolate_function",
		Description: "Return the source of one top-level function, including decorators.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"description": "Python source code"
				},
				"function_name": {
					"type": "string",
					"description": "Name of the top-level function"
				}
			},
			"required": ["code", "function_name"]
		}`),
	}, s.handleIsolateFunction)

	// 7. code_metrics
	s.mcp.AddTool(&mcp.Tool{
		Name:        "code_metrics",
		Description: "Compute per-function cyclomatic complexity (average and max), lines of code and comment lines.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {
					"type": "string",
					"description": "Python source code"
				}
			},
			"required": ["code"]
		}`),
	}, s.handleCodeMetrics)
}

// jsonResult renders data as indented JSON text content.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult reports msg as a tool-level failure.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs decodes the call arguments; a call without arguments yields an empty map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg returns args[key] if it is a string.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
