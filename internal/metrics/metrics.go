// Package metrics computes structural metrics for Python source.
package metrics

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// Function is the complexity of one function or method.
type Function struct {
	Name       string `json:"name"`
	Line       int    `json:"line"`
	Complexity int    `json:"complexity"`
}

// Metrics summarises a source unit. Complexity figures are zero when the
// source does not parse; line counts then fall back to a plain text scan.
type Metrics struct {
	Functions     []Function `json:"functions"`
	ComplexityAvg float64    `json:"cyclomatic_complexity_avg"`
	ComplexityMax int        `json:"cyclomatic_complexity_max"`
	LOC           int        `json:"loc"`
	CommentLines  int        `json:"comment_lines"`
	Parsed        bool       `json:"parsed"`
}

// Compute returns the metrics of code. Blank input yields zero metrics.
func Compute(code string) Metrics {
	m := Metrics{Functions: []Function{}}
	if strings.TrimSpace(code) == "" {
		return m
	}

	src := []byte(code)
	tree, err := parser.ParseStrict(lang.Python, src)
	if err != nil {
		m.LOC, m.CommentLines = scanLines(code)
		return m
	}
	defer tree.Close()
	m.Parsed = true

	spec := lang.ForLanguage(lang.Python)
	funcKinds := lang.NodeSet(spec.FunctionNodeTypes)
	branchKinds := lang.NodeSet(spec.BranchingNodeTypes)
	commentKinds := lang.NodeSet(spec.CommentNodeTypes)

	root := tree.RootNode()
	commentRows := make(map[uint]bool)
	parser.Walk(root, func(node *tree_sitter.Node) bool {
		switch {
		case funcKinds[node.Kind()]:
			name := ""
			if n := node.ChildByFieldName("name"); n != nil {
				name = parser.NodeText(n, src)
			}
			m.Functions = append(m.Functions, Function{
				Name:       name,
				Line:       int(node.StartPosition().Row) + 1,
				Complexity: 1 + countBranchingNodes(node, funcKinds, branchKinds),
			})
		case commentKinds[node.Kind()]:
			commentRows[node.StartPosition().Row] = true
		case isDocString(node):
			for row := node.StartPosition().Row; row <= node.EndPosition().Row; row++ {
				commentRows[row] = true
			}
			return false
		}
		return true
	})

	total := 0
	for _, f := range m.Functions {
		total += f.Complexity
		if f.Complexity > m.ComplexityMax {
			m.ComplexityMax = f.Complexity
		}
	}
	if len(m.Functions) > 0 {
		m.ComplexityAvg = float64(total) / float64(len(m.Functions))
	}
	m.LOC = len(strings.Split(strings.TrimRight(code, "\n"), "\n"))
	m.CommentLines = len(commentRows)
	return m
}

// countBranchingNodes counts decision points inside funcNode, leaving out
// nested functions, which are measured on their own.
func countBranchingNodes(funcNode *tree_sitter.Node, funcKinds, branchKinds map[string]bool) int {
	count := 0
	parser.Walk(funcNode, func(node *tree_sitter.Node) bool {
		if node.Id() == funcNode.Id() {
			return true
		}
		if funcKinds[node.Kind()] {
			return false
		}
		if branchKinds[node.Kind()] {
			count++
		}
		return true
	})
	return count
}

// isDocString reports whether node is a string used as a statement that
// spans more than one line.
func isDocString(node *tree_sitter.Node) bool {
	if node.Kind() != "expression_statement" || node.NamedChildCount() != 1 {
		return false
	}
	child := node.NamedChild(0)
	if child.Kind() != "string" && child.Kind() != "concatenated_string" {
		return false
	}
	return node.EndPosition().Row > node.StartPosition().Row
}

func scanLines(code string) (loc, comments int) {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		loc++
		if strings.HasPrefix(trimmed, "#") {
			comments++
		}
	}
	return loc, comments
}
