package parser

import (
	"fmt"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_sql "github.com/DerekStride/tree-sitter-sql/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/codescribe-dev/codescribe/internal/lang"
)

var (
	languagesOnce sync.Once
	languages     map[lang.Language]*tree_sitter.Language
	parserPools   map[lang.Language]*sync.Pool
)

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[lang.Language]*tree_sitter.Language{
			lang.Python: tree_sitter.NewLanguage(tree_sitter_python.Language()),
			lang.SQL:    tree_sitter.NewLanguage(tree_sitter_sql.Language()),
		}

		parserPools = make(map[lang.Language]*sync.Pool, len(languages))
		for l, tsLang := range languages {
			tsLang := tsLang
			parserPools[l] = &sync.Pool{
				New: func() any {
					p := tree_sitter.NewParser()
					if err := p.SetLanguage(tsLang); err != nil {
						panic(fmt.Sprintf("set language: %v", err))
					}
					return p
				},
			}
		}
	})
}

// Parse returns the syntax tree of source, which may contain ERROR nodes.
// The caller closes the tree. Parsers are reused through a per-language pool.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	initLanguages()

	pool, ok := parserPools[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("failed to get parser for language %s", l)
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", l)
	}

	return tree, nil
}

// SyntaxError reports the first ERROR or MISSING node of a tree.
// Line and Column are 1-based.
type SyntaxError struct {
	Line    int
	Column  int
	Missing string // expected token kind for MISSING nodes
	// Rejected is the kind of a node the grammar accepts but the language
	// version does not, such as a Python 2 print statement.
	Rejected string
}

func (e *SyntaxError) Error() string {
	switch {
	case e.Missing != "":
		return fmt.Sprintf("invalid syntax at line %d, column %d (missing %q)", e.Line, e.Column, e.Missing)
	case e.Rejected != "":
		return fmt.Sprintf("invalid syntax at line %d, column %d (%s)", e.Line, e.Column, e.Rejected)
	}
	return fmt.Sprintf("invalid syntax at line %d, column %d", e.Line, e.Column)
}

// ParseStrict parses source and rejects trees containing syntax errors.
// tree-sitter recovers from errors, so a returned tree is always closed
// here when it carries an ERROR or MISSING node.
func ParseStrict(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	tree, err := Parse(l, source)
	if err != nil {
		return nil, err
	}
	if synErr := CheckSyntax(l, tree.RootNode()); synErr != nil {
		tree.Close()
		return nil, synErr
	}
	return tree, nil
}

// CheckSyntax returns a *SyntaxError for the first broken node under root,
// or for the first node of a kind l lists in RejectedNodeTypes. It returns
// nil for a clean tree.
func CheckSyntax(l lang.Language, root *tree_sitter.Node) error {
	if root == nil {
		return nil
	}
	var rejected map[string]bool
	if spec := lang.ForLanguage(l); spec != nil && len(spec.RejectedNodeTypes) > 0 {
		rejected = lang.NodeSet(spec.RejectedNodeTypes)
	}
	if !root.HasError() && rejected == nil {
		return nil
	}

	var found *SyntaxError
	Walk(root, func(node *tree_sitter.Node) bool {
		if found != nil {
			return false
		}
		broken := node.IsError() || node.IsMissing()
		if !broken && !rejected[node.Kind()] {
			return true
		}
		pos := node.StartPosition()
		found = &SyntaxError{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
		switch {
		case node.IsMissing():
			found.Missing = node.Kind()
		case !broken:
			found.Rejected = node.Kind()
		}
		return false
	})
	if found == nil && root.HasError() {
		pos := root.StartPosition()
		found = &SyntaxError{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1}
	}
	if found == nil {
		return nil
	}
	return found
}

// WalkFunc visits one node; returning false prunes its subtree.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk visits node and its descendants in source order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the source bytes spanned by node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseSpace rewrites node text onto one line, folding every whitespace run
// (including newlines and continuation indentation) into a single space.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FindChildByKind returns the first direct child with the given kind.
func FindChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}
