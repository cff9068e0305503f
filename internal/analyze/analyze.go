// Package analyze composes the analysers into the snippet, project and
// archive workflows exposed by the CLI and the tool server.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codescribe-dev/codescribe/internal/archive"
	"github.com/codescribe-dev/codescribe/internal/callgraph"
	"github.com/codescribe-dev/codescribe/internal/config"
	"github.com/codescribe-dev/codescribe/internal/discover"
	"github.com/codescribe-dev/codescribe/internal/source"
	"github.com/codescribe-dev/codescribe/internal/sqlscan"
	"github.com/codescribe-dev/codescribe/internal/tracer"
)

// ErrNoPython is returned when a project contains no Python files.
var ErrNoPython = errors.New("no Python files detected")

// TraceHint replaces the trace when no driver input was given.
const TraceHint = "Please provide a sample input to run the Live Trace."

// NoQueriesMessage is reported when a project embeds no queries.
const NoQueriesMessage = "No SQL queries detected across the uploaded project."

// Visualization is a graph together with both renderings.
type Visualization struct {
	Graph   *callgraph.Graph `json:"graph"`
	Mermaid string           `json:"mermaid"`
	DOT     string           `json:"dot"`
}

func visualize(g *callgraph.Graph) Visualization {
	return Visualization{Graph: g, Mermaid: callgraph.Mermaid(g), DOT: callgraph.DOT(g)}
}

// SnippetReport is the result of analysing one pasted source.
type SnippetReport struct {
	Visualizer Visualization   `json:"visualizer"`
	Queries    []sqlscan.Query `json:"sql_queries"`
	Trace      *tracer.Result  `json:"trace,omitempty"`
	TraceHint  string          `json:"trace_hint,omitempty"`
}

// FileQueries lists the queries found in one project file.
type FileQueries struct {
	Path    string          `json:"path"`
	Queries []sqlscan.Query `json:"queries"`
}

// ProjectReport is the result of analysing a set of files.
type ProjectReport struct {
	Visualizer Visualization `json:"visualizer"`
	FileCount  int           `json:"file_count"`
	Queries    []FileQueries `json:"sql_queries"`
	// QueryMessage is set when no file embeds a query.
	QueryMessage string `json:"query_message,omitempty"`
}

// QueryCount returns the number of queries across all files.
func (r *ProjectReport) QueryCount() int {
	n := 0
	for _, fq := range r.Queries {
		n += len(fq.Queries)
	}
	return n
}

// Analyzer runs the workflows with one shared tracer.
type Analyzer struct {
	tracer    *tracer.Tracer
	extractor *archive.Extractor
	discover  *discover.Options
}

// New creates an Analyzer from cfg. A nil cfg uses defaults.
func New(cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Analyzer{
		tracer:    tracer.New(cfg.TracerOptions()),
		extractor: cfg.Extractor(),
		discover:  cfg.DiscoverOptions(),
	}
}

// Tracer returns the shared tracer.
func (a *Analyzer) Tracer() *tracer.Tracer {
	return a.tracer
}

// Snippet builds the call graph and query list of code, and traces it when
// driver is non-blank.
func (a *Analyzer) Snippet(ctx context.Context, code, driver string) *SnippetReport {
	rep := &SnippetReport{
		Visualizer: visualize(callgraph.BuildFile([]byte(code))),
		Queries:    nonNil(sqlscan.Extract([]byte(code))),
	}
	if strings.TrimSpace(driver) == "" {
		rep.TraceHint = TraceHint
		return rep
	}
	rep.Trace = a.tracer.Run(ctx, code, strings.TrimSpace(driver))
	return rep
}

// Project builds the project graph over units and merges the total query
// count into its metadata.
func (a *Analyzer) Project(ctx context.Context, units []source.Unit) (*ProjectReport, error) {
	if len(units) == 0 {
		return nil, ErrNoPython
	}
	g := callgraph.BuildProject(ctx, units)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &ProjectReport{FileCount: len(units), Queries: []FileQueries{}}
	for _, u := range units {
		if qs := sqlscan.Extract(u.Text); len(qs) > 0 {
			rep.Queries = append(rep.Queries, FileQueries{Path: u.Path, Queries: qs})
		}
	}
	if rep.QueryCount() == 0 {
		rep.QueryMessage = NoQueriesMessage
	}
	rep.Visualizer = visualize(g.WithSQLQueries(rep.QueryCount()))
	return rep, nil
}

// Directory collects the Python files under dir and runs Project.
func (a *Analyzer) Directory(ctx context.Context, dir string) (*ProjectReport, error) {
	units, err := discover.CollectPython(ctx, dir, a.discover)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPython, dir)
	}
	return a.Project(ctx, units)
}

// Archive extracts the archive at path into a temporary directory through
// the path guard, analyses it and removes the directory again.
func (a *Analyzer) Archive(ctx context.Context, path string) (*ProjectReport, error) {
	t0 := time.Now()
	tmp, err := os.MkdirTemp("", "codescribe_archive_")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	dest := filepath.Join(tmp, "project")
	if _, err := a.extractor.Extract(path, dest); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	units, err := discover.CollectPython(ctx, dest, a.discover)
	if err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w in the uploaded archive", ErrNoPython)
	}
	rep, err := a.Project(ctx, units)
	if err != nil {
		return nil, err
	}
	slog.Info("archive.analyzed", "files", len(units), "elapsed", time.Since(t0))
	return rep, nil
}

// Bundle collects the Python files under dir into one CombinedSource text.
func (a *Analyzer) Bundle(ctx context.Context, dir string) (string, error) {
	units, err := discover.CollectPython(ctx, dir, a.discover)
	if err != nil {
		return "", fmt.Errorf("collect: %w", err)
	}
	if len(units) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoPython, dir)
	}
	return CombinedSource(units), nil
}

// CombinedSource concatenates units under "# File: <path>" headers, the
// form downstream report generators consume.
func CombinedSource(units []source.Unit) string {
	sections := make([]string, len(units))
	for i, u := range units {
		sections[i] = "# File: " + u.Path + "\n" + string(u.Text) + "\n"
	}
	return strings.Join(sections, "\n")
}

func nonNil(qs []sqlscan.Query) []sqlscan.Query {
	if qs == nil {
		return []sqlscan.Query{}
	}
	return qs
}
