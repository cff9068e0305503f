package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleTraceExecution(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, code, res := requireCode(req)
	if res != nil {
		return res, nil
	}
	result := s.analyzer.Tracer().Run(ctx, code, getStringArg(args, "trace_input"))
	return jsonResult(result), nil
}

func (s *Server) handleAnalyzeSnippet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, code, res := requireCode(req)
	if res != nil {
		return res, nil
	}
	return jsonResult(s.analyzer.Snippet(ctx, code, getStringArg(args, "trace_input"))), nil
}
