// Package sqlscan finds string literals in Python source that look like
// embedded SQL statements.
package sqlscan

import (
	"regexp"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codescribe-dev/codescribe/internal/lang"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// MinLength is the shortest trimmed literal considered a query.
const MinLength = 6

// keywordPattern finds a statement keyword on Unicode word boundaries.
// RE2's \b is ASCII-only, so the boundaries are spelled out as word and
// non-word classes; "WITH" must be followed by whitespace and a word.
var keywordPattern = regexp.MustCompile(`(?i)(?:^|` + nonWordChar + `)(?:` +
	`(SELECT|INSERT|UPDATE|DELETE|CREATE\s+TABLE|ALTER\s+TABLE)(?:$|` + nonWordChar + `)` +
	`|(WITH)\s+` + wordChar +
	`|(DROP\s+TABLE|MERGE)(?:$|` + nonWordChar + `))`)

const (
	wordChar    = `[\p{L}\p{N}_]`
	nonWordChar = `[^\p{L}\p{N}_]`
)

// Query is one literal that matched the keyword heuristic.
type Query struct {
	Text      string `json:"text"`
	Statement string `json:"statement"`
	// Parses reports whether the SQL grammar accepts Text without errors.
	Parses bool `json:"parses"`
}

// Extract returns the query-like literals of a Python source in first-seen
// order, without duplicates. Source that fails to parse yields nil.
func Extract(source []byte) []Query {
	tree, err := parser.ParseStrict(lang.Python, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	stringKinds := lang.NodeSet(lang.ForLanguage(lang.Python).StringNodeTypes)
	seen := make(map[string]bool)
	var out []Query

	parser.Walk(tree.RootNode(), func(node *tree_sitter.Node) bool {
		if !stringKinds[node.Kind()] {
			return true
		}
		for _, frag := range literalFragments(node, source) {
			q, ok := Match(frag)
			if !ok || seen[q.Text] {
				continue
			}
			seen[q.Text] = true
			q.Parses = Validate(q.Text)
			out = append(out, q)
		}
		return false
	})
	return out
}

// Match applies the heuristic to one decoded literal. The returned query
// holds the trimmed text and the matched keyword in upper case.
func Match(literal string) (Query, bool) {
	text := strings.TrimSpace(literal)
	if utf8.RuneCountInString(text) < MinLength {
		return Query{}, false
	}
	m := keywordPattern.FindStringSubmatch(text)
	if m == nil {
		return Query{}, false
	}
	var keyword string
	for _, g := range m[1:] {
		if g != "" {
			keyword = g
			break
		}
	}
	return Query{Text: text, Statement: strings.ToUpper(parser.CollapseSpace(keyword))}, true
}

// Validate reports whether the SQL grammar parses query without errors.
func Validate(query string) bool {
	tree, err := parser.ParseStrict(lang.SQL, []byte(query))
	if err != nil {
		return false
	}
	tree.Close()
	return true
}

// literalFragments returns the decoded literal runs of a string or
// concatenated_string node. Adjacent literals are joined; an interpolation
// slot ends the current run. Bytes literals produce nothing.
func literalFragments(node *tree_sitter.Node, source []byte) []string {
	var pieces []*tree_sitter.Node
	if node.Kind() == "concatenated_string" {
		for i := uint(0); i < node.NamedChildCount(); i++ {
			if child := node.NamedChild(i); child != nil && child.Kind() == "string" {
				pieces = append(pieces, child)
			}
		}
	} else {
		pieces = []*tree_sitter.Node{node}
	}

	var (
		frags   []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			frags = append(frags, current.String())
			current.Reset()
		}
	}

	for _, piece := range pieces {
		p := stringPrefix(piece, source)
		if p.bytes {
			return nil
		}
		var pending strings.Builder
		decode := func() {
			current.WriteString(decodeLiteral(pending.String(), p))
			pending.Reset()
		}
		for i := uint(0); i < piece.ChildCount(); i++ {
			child := piece.Child(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "string_start", "string_end":
			case "interpolation":
				decode()
				flush()
			default:
				pending.WriteString(parser.NodeText(child, source))
			}
		}
		decode()
	}
	flush()
	return frags
}

type prefix struct {
	raw       bool
	bytes     bool
	formatted bool
}

func stringPrefix(node *tree_sitter.Node, source []byte) prefix {
	var text string
	if start := parser.FindChildByKind(node, "string_start"); start != nil {
		text = parser.NodeText(start, source)
	} else {
		text = parser.NodeText(node, source)
	}
	var p prefix
	for _, r := range strings.ToLower(text) {
		switch r {
		case 'r':
			p.raw = true
		case 'b':
			p.bytes = true
		case 'f', 't':
			p.formatted = true
		default:
			return p
		}
	}
	return p
}

func decodeLiteral(raw string, p prefix) string {
	if raw == "" {
		return ""
	}
	text := raw
	if !p.raw {
		text = Unescape(text)
	}
	if p.formatted {
		text = strings.ReplaceAll(text, "{{", "{")
		text = strings.ReplaceAll(text, "}}", "}")
	}
	return text
}
