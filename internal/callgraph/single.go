package callgraph

import (
	"github.com/codescribe-dev/codescribe/internal/fqn"
	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// BuildFile builds the call graph of a single Python snippet. Nodes are
// keyed by bare function name or callee text; callees never defined in the
// snippet become external nodes.
func BuildFile(source []byte) *Graph {
	tree, err := parser.ParseStrict(lang.Python, source)
	if err != nil {
		return failed(ModeFile, "TD", "Failed to parse code: "+err.Error())
	}
	defer tree.Close()

	calls := make(map[string]map[string]struct{})
	w := &cursorWalker{
		source:  source,
		qualify: func(name string) string { return name },
		enter: func(qn string) {
			if _, ok := calls[qn]; !ok {
				calls[qn] = make(map[string]struct{})
			}
		},
		call: func(caller, callee string) {
			set, ok := calls[caller]
			if !ok {
				set = make(map[string]struct{})
				calls[caller] = set
			}
			set[callee] = struct{}{}
		},
	}
	w.walk(tree.RootNode())

	nodes := make(map[string]Node)
	edges := make(edgeSet)
	for fn := range calls {
		nodes[fn] = Node{Key: fn, Label: fn, Function: fn, Kind: KindDefined}
	}
	for caller, callees := range calls {
		for callee := range callees {
			if _, ok := nodes[callee]; !ok {
				nodes[callee] = Node{
					Key:      callee,
					Label:    callee,
					File:     fqn.ExternalFile,
					Function: callee,
					Kind:     KindExternal,
				}
			}
			edges.add(caller, callee)
		}
	}

	g := &Graph{Mode: ModeFile, direction: "TD"}
	g.Metadata.Files = 1
	return finalize(g, nodes, edges)
}
