package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescribe-dev/codescribe/internal/analyze"
)

func (s *Server) handleAnalyzeProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return errResult(fmt.Sprintf("stat: %v", err)), nil
	}

	var rep *analyze.ProjectReport
	if info.IsDir() {
		rep, err = s.analyzer.Directory(ctx, path)
	} else {
		rep, err = s.analyzer.Archive(ctx, path)
	}
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(rep), nil
}
