// Package callgraph builds function call graphs from Python syntax trees,
// either for one snippet or across every file of a project.
package callgraph

import (
	"sort"

	"github.com/codescribe-dev/codescribe/internal/fqn"
	"github.com/codescribe-dev/codescribe/internal/nodeid"
)

// Kind tags a node as backed by a parsed definition or not.
type Kind string

const (
	KindDefined  Kind = "defined"
	KindExternal Kind = "external"
)

// Mode records which builder produced a graph.
type Mode string

const (
	ModeFile    Mode = "file"
	ModeProject Mode = "project"
)

const (
	// NoFunctionsMessage accompanies graphs whose node universe is empty.
	NoFunctionsMessage = "No functions detected."
	noFunctionsLabel   = "No functions detected"
	parseErrorLabel    = "Parse error"
	placeholderID      = "placeholder"
)

// ProjectResolution describes how cross-file calls were matched. Reports built
// on a project graph should surface it.
const ProjectResolution = "name-based, best-effort: a call resolves to every top-level function " +
	"sharing its final dotted name in any analysed file; imports, aliases and scopes are not analysed"

// Node is a call graph vertex.
type Node struct {
	Key      string `json:"key"`   // qualified identifier (file:name, external::callee, or bare name)
	ID       string `json:"id"`    // diagram-safe identifier, unique within the graph
	Label    string `json:"label"` // display text
	File     string `json:"file,omitempty"`
	Function string `json:"function"`
	Kind     Kind   `json:"type"`
}

// Edge is an ordered (caller, callee) pair of qualified identifiers.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Metadata aggregates counts for a graph.
type Metadata struct {
	Files            int  `json:"files"`
	DefinedFunctions int  `json:"defined_functions"`
	ExternalNodes    int  `json:"external_nodes"`
	Edges            int  `json:"edges"`
	SQLQueries       *int `json:"sql_queries,omitempty"`
}

// FileInfo is the per-file provenance of a project graph.
type FileInfo struct {
	Path      string `json:"path"`
	Digest    string `json:"digest"`
	Functions int    `json:"functions"`
	Parsed    bool   `json:"parsed"`
	Error     string `json:"error,omitempty"`
}

// Graph is the immutable result of one build.
type Graph struct {
	Mode       Mode       `json:"mode"`
	Nodes      []Node     `json:"nodes"`
	Edges      []Edge     `json:"edges"`
	Metadata   Metadata   `json:"metadata"`
	Files      []FileInfo `json:"files,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	Error      string     `json:"error,omitempty"`
	Message    string     `json:"message,omitempty"`

	direction   string
	placeholder string
	ids         map[string]string
}

// WithSQLQueries returns a copy of g whose metadata also reports count
// embedded queries. The receiver is left untouched.
func (g *Graph) WithSQLQueries(count int) *Graph {
	out := *g
	out.Metadata.SQLQueries = &count
	return &out
}

// NodeID returns the diagram id of the node with the given qualified key.
func (g *Graph) NodeID(key string) (string, bool) {
	id, ok := g.ids[key]
	return id, ok
}

// edgeSet is a deduplicating set of ordered pairs.
type edgeSet map[Edge]struct{}

func (s edgeSet) add(source, target string) {
	s[Edge{Source: source, Target: target}] = struct{}{}
}

func (s edgeSet) sorted() []Edge {
	edges := make([]Edge, 0, len(s))
	for e := range s {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// finalize sorts nodes by key, allocates diagram ids in that order and
// fills the derived metadata. Nothing mutates the graph afterwards.
func finalize(g *Graph, nodes map[string]Node, edges edgeSet) *Graph {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	alloc := nodeid.NewAllocator()
	g.ids = make(map[string]string, len(keys))
	g.Nodes = make([]Node, 0, len(keys))
	for _, k := range keys {
		n := nodes[k]
		n.ID = alloc.ID(k)
		g.ids[k] = n.ID
		g.Nodes = append(g.Nodes, n)
		switch n.Kind {
		case KindDefined:
			g.Metadata.DefinedFunctions++
		case KindExternal:
			g.Metadata.ExternalNodes++
		}
	}

	g.Edges = edges.sorted()
	g.Metadata.Edges = len(g.Edges)

	if len(g.Nodes) == 0 && g.placeholder == "" {
		g.placeholder = noFunctionsLabel
		if g.Message == "" {
			g.Message = NoFunctionsMessage
		}
	}
	return g
}

// failed returns a node-free graph carrying a parse or cancellation error.
func failed(mode Mode, direction, msg string) *Graph {
	return &Graph{
		Mode:        mode,
		Nodes:       []Node{},
		Edges:       []Edge{},
		Error:       msg,
		direction:   direction,
		placeholder: parseErrorLabel,
		ids:         map[string]string{},
	}
}

func externalNode(base string) Node {
	return Node{
		Key:      fqn.External(base),
		Label:    base,
		File:     fqn.ExternalFile,
		Function: base,
		Kind:     KindExternal,
	}
}
