package callgraph

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codescribe-dev/codescribe/internal/parser"
)

// cursorWalker walks a Python tree while tracking the innermost enclosing
// function. The cursor is saved on entering a definition and restored on
// leaving it, so its depth follows lexical nesting only.
type cursorWalker struct {
	source  []byte
	qualify func(name string) string
	// enter is called once per definition with its qualified name.
	enter func(qn string)
	// call is called for every resolvable call made under a set cursor.
	call func(caller, callee string)

	current string
}

func (w *cursorWalker) walk(node *tree_sitter.Node) {
	if node == nil {
		return
	}
	switch node.Kind() {
	case "function_definition":
		if name := functionName(node, w.source); name != "" {
			w.withCursor(name, node)
			return
		}
	case "decorated_definition":
		// Decorator expressions are evaluated for the function they wrap,
		// so their calls belong to it.
		if def := node.ChildByFieldName("definition"); def != nil && def.Kind() == "function_definition" {
			if name := functionName(def, w.source); name != "" {
				w.withCursor(name, node)
				return
			}
		}
	case "call":
		if w.current != "" {
			if callee, ok := calleeText(node.ChildByFieldName("function"), w.source); ok {
				w.call(w.current, callee)
			}
		}
	}
	w.walkChildren(node)
}

func (w *cursorWalker) withCursor(name string, node *tree_sitter.Node) {
	qn := w.qualify(name)
	prev := w.current
	w.current = qn
	if w.enter != nil {
		w.enter(qn)
	}
	if node.Kind() == "decorated_definition" {
		// The inner definition re-enters with the same name; walk its
		// children directly so enter fires once.
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			if child.Kind() == "function_definition" {
				w.walkChildren(child)
				continue
			}
			w.walk(child)
		}
	} else {
		w.walkChildren(node)
	}
	w.current = prev
}

func (w *cursorWalker) walkChildren(node *tree_sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(i))
	}
}

// functionName returns the declared name of a function_definition node.
func functionName(node *tree_sitter.Node, source []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return parser.NodeText(nameNode, source)
}

// calleeText rebuilds a callee expression as one line of source-like text.
// Names and attribute chains come out dotted ("self.db.query"); anything else
// keeps its source text with whitespace folded. Expressions containing
// syntax errors are reported as unresolvable.
func calleeText(node *tree_sitter.Node, source []byte) (string, bool) {
	if node == nil || node.HasError() {
		return "", false
	}
	switch node.Kind() {
	case "identifier":
		return parser.NodeText(node, source), true
	case "attribute":
		obj, ok := calleeText(node.ChildByFieldName("object"), source)
		if !ok {
			return "", false
		}
		attr := node.ChildByFieldName("attribute")
		if attr == nil {
			return "", false
		}
		return obj + "." + parser.NodeText(attr, source), true
	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			inner := node.NamedChild(0)
			switch inner.Kind() {
			case "identifier", "attribute", "call", "subscript":
				return calleeText(inner, source)
			}
		}
	}
	text := parser.CollapseSpace(parser.NodeText(node, source))
	return text, text != ""
}

// topLevelFunctions returns the function definitions in a module body,
// unwrapping decorated definitions.
func topLevelFunctions(root *tree_sitter.Node) []*tree_sitter.Node {
	var defs []*tree_sitter.Node
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "function_definition":
			defs = append(defs, child)
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil && def.Kind() == "function_definition" {
				defs = append(defs, def)
			}
		}
	}
	return defs
}
