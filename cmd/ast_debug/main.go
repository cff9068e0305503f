// Command ast_debug prints the tree-sitter syntax tree of Python (or SQL)
// source, marking ERROR and MISSING nodes.
//
//	ast_debug [-sql] [file]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

func printAST(w io.Writer, node *tree_sitter.Node, field string, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := strings.Repeat("  ", indent)
	if field != "" {
		field += ": "
	}
	mark := ""
	switch {
	case node.IsError():
		mark = " [ERROR]"
	case node.IsMissing():
		mark = " [MISSING]"
	}
	text := parser.NodeText(node, source)
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Fprintf(w, "%s%s%s%s %q\n", prefix, field, node.Kind(), mark, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(w, node.Child(i), node.FieldNameForChild(uint32(i)), source, indent+1)
	}
}

func main() {
	sql := flag.Bool("sql", false, "parse as SQL instead of Python")
	flag.Parse()

	var (
		src []byte
		err error
	)
	if flag.NArg() > 0 {
		src, err = os.ReadFile(flag.Arg(0))
	} else {
		src, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	l := lang.Python
	if *sql {
		l = lang.SQL
	}
	tree, err := parser.Parse(l, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse:", err)
		os.Exit(1)
	}
	defer tree.Close()

	printAST(os.Stdout, tree.RootNode(), "", src, 0)
	if synErr := parser.CheckSyntax(l, tree.RootNode()); synErr != nil {
		fmt.Fprintln(os.Stderr, synErr)
	}
}
