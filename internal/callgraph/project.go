package callgraph

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/codescribe-dev/codescribe/internal/fqn"
	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/parser"
	"github.com/codescribe-dev/codescribe/internal/source"
)

// parseResult holds one parsed project file. Tree is nil when parsing failed.
type parseResult struct {
	Unit source.Unit
	Tree *tree_sitter.Tree
	Err  error
}

// resolvedEdge is a call edge produced during parallel resolution.
type resolvedEdge struct {
	Caller string
	Target string
}

// BuildProject builds a cross-file call graph over units. Only top-level
// functions become defined nodes; calls resolve by plain name to every
// definition sharing it, otherwise to one external node per callee.
// Files that fail to parse are skipped and recorded in Graph.Files.
// A cancelled context yields a graph carrying the context error.
func BuildProject(ctx context.Context, units []source.Unit) *Graph {
	t0 := time.Now()
	slog.Info("project.start", "files", len(units))

	results := parseUnits(ctx, units)
	defer func() {
		for _, r := range results {
			if r != nil && r.Tree != nil {
				r.Tree.Close()
			}
		}
	}()
	if err := ctx.Err(); err != nil {
		return failed(ModeProject, "LR", "project analysis cancelled: "+err.Error())
	}

	// Definitions: sequential so re-declarations overwrite in input order.
	registry := NewFunctionRegistry()
	nodes := make(map[string]Node)
	files := make([]FileInfo, len(results))
	for i, r := range results {
		info := FileInfo{Path: r.Unit.Path, Digest: r.Unit.Digest()}
		if r.Err != nil {
			slog.Warn("project.parse.err", "path", r.Unit.Path, "err", r.Err)
			info.Error = r.Err.Error()
			files[i] = info
			continue
		}
		info.Parsed = true
		for _, def := range topLevelFunctions(r.Tree.RootNode()) {
			name := functionName(def, r.Unit.Text)
			if name == "" {
				continue
			}
			qn := fqn.Compute(r.Unit.Path, name)
			if !registry.Exists(qn) {
				info.Functions++
			}
			nodes[qn] = Node{
				Key:      qn,
				Label:    qn,
				File:     r.Unit.Path,
				Function: name,
				Kind:     KindDefined,
			}
			registry.Register(name, qn)
		}
		files[i] = info
	}
	slog.Debug("project.defs", "functions", registry.Size())

	// References: per-file in parallel, merged in input order.
	perFile := make([][]resolvedEdge, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(results)))
	for i, r := range results {
		if r.Tree == nil {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			perFile[i] = resolveCalls(r, registry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failed(ModeProject, "LR", "project analysis cancelled: "+err.Error())
	}

	edges := make(edgeSet)
	for _, resolved := range perFile {
		for _, e := range resolved {
			if fqn.IsExternal(e.Target) {
				if _, ok := nodes[e.Target]; !ok {
					nodes[e.Target] = externalNode(strings.TrimPrefix(e.Target, fqn.ExternalPrefix))
				}
			}
			edges.add(e.Caller, e.Target)
		}
	}

	out := &Graph{
		Mode:       ModeProject,
		Files:      files,
		Resolution: ProjectResolution,
		direction:  "LR",
	}
	out.Metadata.Files = len(units)
	finalize(out, nodes, edges)

	slog.Info("project.done",
		"files", len(units),
		"functions", out.Metadata.DefinedFunctions,
		"externals", out.Metadata.ExternalNodes,
		"edges", out.Metadata.Edges,
		"elapsed", time.Since(t0),
	)
	return out
}

func parseUnits(ctx context.Context, units []source.Unit) []*parseResult {
	results := make([]*parseResult, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(units)))
	for i, u := range units {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = &parseResult{Unit: u, Err: gctx.Err()}
				return gctx.Err()
			}
			tree, err := parser.ParseStrict(lang.Python, u.Text)
			results[i] = &parseResult{Unit: u, Tree: tree, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	for i, r := range results {
		if r == nil {
			results[i] = &parseResult{Unit: units[i], Err: context.Canceled}
		}
	}
	return results
}

func resolveCalls(r *parseResult, registry *FunctionRegistry) []resolvedEdge {
	var out []resolvedEdge
	w := &cursorWalker{
		source:  r.Unit.Text,
		qualify: func(name string) string { return fqn.Compute(r.Unit.Path, name) },
		call: func(caller, callee string) {
			base := fqn.BaseCallee(callee)
			if base == "" {
				return
			}
			targets := registry.FindByName(fqn.SimpleName(base))
			if len(targets) == 0 {
				out = append(out, resolvedEdge{Caller: caller, Target: fqn.External(base)})
				return
			}
			for _, target := range targets {
				out = append(out, resolvedEdge{Caller: caller, Target: target})
			}
		},
	}
	w.walk(r.Tree.RootNode())
	return out
}

func workerCount(n int) int {
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
