package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescribe-dev/codescribe/internal/callgraph"
	"github.com/codescribe-dev/codescribe/internal/metrics"
	"github.com/codescribe-dev/codescribe/internal/snippet"
	"github.com/codescribe-dev/codescribe/internal/sqlscan"
)

// requireCode returns the "code" argument or an error result.
func requireCode(req *mcp.CallToolRequest) (map[string]any, string, *mcp.CallToolResult) {
	args, err := parseArgs(req)
	if err != nil {
		return nil, "", errResult(err.Error())
	}
	code := getStringArg(args, "code")
	if strings.TrimSpace(code) == "" {
		return nil, "", errResult("code is required")
	}
	return args, code, nil
}

func (s *Server) handleVisualizeCallGraph(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, code, res := requireCode(req)
	if res != nil {
		return res, nil
	}
	g := callgraph.BuildFile([]byte(code))
	return jsonResult(map[string]any{
		"graph":   g,
		"mermaid": callgraph.Mermaid(g),
		"dot":     callgraph.DOT(g),
	}), nil
}

func (s *Server) handleExtractSQL(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, code, res := requireCode(req)
	if res != nil {
		return res, nil
	}
	queries := sqlscan.Extract([]byte(code))
	if queries == nil {
		queries = []sqlscan.Query{}
	}
	return jsonResult(map[string]any{
		"queries": queries,
		"count":   len(queries),
	}), nil
}

func (s *Server) handleIsolateFunction(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, code, res := requireCode(req)
	if res != nil {
		return res, nil
	}
	name := strings.TrimSpace(getStringArg(args, "function_name"))
	if name == "" {
		return errResult("function_name is required"), nil
	}
	src, err := snippet.IsolateFunction(code, name)
	if errors.Is(err, snippet.ErrNotFound) {
		return errResult(fmt.Sprintf("Function '%s' not found.", name)), nil
	}
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"function_name":   name,
		"function_source": src,
	}), nil
}

func (s *Server) handleCodeMetrics(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, code, res := requireCode(req)
	if res != nil {
		return res, nil
	}
	return jsonResult(metrics.Compute(code)), nil
}
