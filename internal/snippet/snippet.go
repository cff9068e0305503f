// Package snippet cuts individual definitions out of Python source.
package snippet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// ErrNotFound is returned when no top-level function has the requested name.
var ErrNotFound = errors.New("function not found")

// IsolateFunction returns the source of the top-level function called name,
// including its decorators. When name is defined more than once, the first
// definition is returned.
func IsolateFunction(code, name string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}
	src := []byte(code)
	tree, err := parser.ParseStrict(lang.Python, src)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		def := child
		if child.Kind() == "decorated_definition" {
			def = child.ChildByFieldName("definition")
		}
		if def == nil || def.Kind() != "function_definition" {
			continue
		}
		nameNode := def.ChildByFieldName("name")
		if nameNode != nil && parser.NodeText(nameNode, src) == name {
			return strings.TrimSpace(parser.NodeText(child, src)), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}
