package callgraph

import (
	"strings"
)

// Mermaid renders g as a Mermaid flowchart. Node ids come from the graph's
// allocator, so the output is stable for a given graph. Edges whose
// endpoints have no node are left out.
func Mermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph ")
	b.WriteString(g.direction)
	if len(g.Nodes) == 0 {
		b.WriteString("\n" + placeholderID + `["` + g.placeholder + `"]`)
		return b.String()
	}
	for _, n := range g.Nodes {
		b.WriteString("\n" + n.ID + `["` + strings.ReplaceAll(n.Label, `"`, "'") + `"]`)
	}
	for _, e := range g.Edges {
		src, ok1 := g.ids[e.Source]
		dst, ok2 := g.ids[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		b.WriteString("\n" + src + " --> " + dst)
	}
	return b.String()
}

// DOT renders g in Graphviz DOT syntax using the same ids as Mermaid.
func DOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("// Function Call Graph\ndigraph {\n")
	if g.direction == "LR" {
		b.WriteString("\trankdir=LR\n")
	}
	if len(g.Nodes) == 0 {
		b.WriteString("\t" + placeholderID + " [label=" + dotQuote(g.placeholder) + "]\n}\n")
		return b.String()
	}
	for _, n := range g.Nodes {
		b.WriteString("\t" + n.ID + " [label=" + dotQuote(n.Label) + "]\n")
	}
	for _, e := range g.Edges {
		src, ok1 := g.ids[e.Source]
		dst, ok2 := g.ids[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		b.WriteString("\t" + src + " -> " + dst + "\n")
	}
	b.WriteString("}\n")
	return b.String()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
