package callgraph

import (
	"context"
	"strings"
	"testing"

	"github.com/codescribe-dev/codescribe/internal/source"
)

func nodeKeys(g *Graph) []string {
	keys := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		keys = append(keys, n.Key)
	}
	return keys
}

func hasEdge(g *Graph, src, dst string) bool {
	for _, e := range g.Edges {
		if e.Source == src && e.Target == dst {
			return true
		}
	}
	return false
}

func TestBuildFile_SimpleCall(t *testing.T) {
	g := BuildFile([]byte("def a():\n    b()\n\ndef b():\n    pass\n"))
	if g.Error != "" {
		t.Fatalf("unexpected error: %s", g.Error)
	}
	if got := strings.Join(nodeKeys(g), ","); got != "a,b" {
		t.Errorf("nodes: got %s, want a,b", got)
	}
	if len(g.Edges) != 1 || !hasEdge(g, "a", "b") {
		t.Errorf("edges: got %v, want [a->b]", g.Edges)
	}
	for _, n := range g.Nodes {
		if n.Kind != KindDefined {
			t.Errorf("node %s: kind %s, want defined", n.Key, n.Kind)
		}
	}

	want := "graph TD\na[\"a\"]\nb[\"b\"]\na --> b"
	if got := Mermaid(g); got != want {
		t.Errorf("mermaid:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildFile_ExternalCallees(t *testing.T) {
	src := "def main():\n    print('hi')\n    os.path.join('a', 'b')\n"
	g := BuildFile([]byte(src))
	if got := strings.Join(nodeKeys(g), ","); got != "main,os.path.join,print" {
		t.Fatalf("nodes: got %s", got)
	}
	if g.Metadata.DefinedFunctions != 1 || g.Metadata.ExternalNodes != 2 {
		t.Errorf("metadata: %+v", g.Metadata)
	}
	if !hasEdge(g, "main", "os.path.join") || !hasEdge(g, "main", "print") {
		t.Errorf("edges: %v", g.Edges)
	}
	id, ok := g.NodeID("os.path.join")
	if !ok || id != "os_path_join" {
		t.Errorf("NodeID(os.path.join) = %q, %v", id, ok)
	}
}

func TestBuildFile_NestedCursorRestored(t *testing.T) {
	src := `def outer():
    def inner():
        helper()
    after()
`
	g := BuildFile([]byte(src))
	if !hasEdge(g, "inner", "helper") {
		t.Errorf("missing inner->helper: %v", g.Edges)
	}
	if !hasEdge(g, "outer", "after") {
		t.Errorf("missing outer->after: %v", g.Edges)
	}
	if hasEdge(g, "outer", "helper") {
		t.Errorf("helper attributed to outer: %v", g.Edges)
	}
}

func TestBuildFile_DecoratorsAndAsync(t *testing.T) {
	src := `@app.route("/")
def index():
    return render()

async def fetch():
    await get()
`
	g := BuildFile([]byte(src))
	for _, want := range [][2]string{{"index", "app.route"}, {"index", "render"}, {"fetch", "get"}} {
		if !hasEdge(g, want[0], want[1]) {
			t.Errorf("missing edge %s->%s: %v", want[0], want[1], g.Edges)
		}
	}
}

func TestBuildFile_ModuleLevelCallsIgnored(t *testing.T) {
	g := BuildFile([]byte("print('x')\nmain()\n"))
	if len(g.Nodes) != 0 {
		t.Fatalf("expected no nodes, got %v", g.Nodes)
	}
	if g.Message != NoFunctionsMessage {
		t.Errorf("message: %q", g.Message)
	}
	want := "graph TD\nplaceholder[\"No functions detected\"]"
	if got := Mermaid(g); got != want {
		t.Errorf("mermaid: %q", got)
	}
}

func TestBuildFile_ParseError(t *testing.T) {
	for _, src := range []string{
		"def broken(:\n    pass\n",
		"def f():\n    print \"hi\"\n",
		"def f():\n    exec \"x\"\n",
	} {
		g := BuildFile([]byte(src))
		if !strings.HasPrefix(g.Error, "Failed to parse code: invalid syntax") {
			t.Fatalf("%q: error %q", src, g.Error)
		}
		if len(g.Nodes) != 0 || len(g.Edges) != 0 {
			t.Errorf("%q: expected empty graph, got %d nodes %d edges", src, len(g.Nodes), len(g.Edges))
		}
		if got := Mermaid(g); got != "graph TD\nplaceholder[\"Parse error\"]" {
			t.Errorf("%q: mermaid %q", src, got)
		}
	}
}

func TestBuildFile_QuotesInLabel(t *testing.T) {
	g := BuildFile([]byte("def f():\n    registry[\"k\"]()\n"))
	out := Mermaid(g)
	if !strings.Contains(out, `["registry['k']"]`) {
		t.Errorf("expected quotes replaced in label:\n%s", out)
	}
	if !strings.Contains(DOT(g), `[label="registry[\"k\"]"]`) {
		t.Errorf("expected escaped DOT label:\n%s", DOT(g))
	}
}

func TestBuildProject_CrossFile(t *testing.T) {
	units := []source.Unit{
		{Path: "x.py", Text: []byte("def f():\n    pass\n")},
		{Path: "y.py", Text: []byte("def g():\n    f()\n")},
	}
	g := BuildProject(context.Background(), units)
	if !hasEdge(g, "y.py:g", "x.py:f") {
		t.Fatalf("missing y.py:g -> x.py:f: %v", g.Edges)
	}
	if g.Metadata.ExternalNodes != 0 {
		t.Errorf("external nodes: %d", g.Metadata.ExternalNodes)
	}
	if g.Metadata.Files != 2 || g.Metadata.DefinedFunctions != 2 || g.Metadata.Edges != 1 {
		t.Errorf("metadata: %+v", g.Metadata)
	}
	want := "graph LR\nx_py_f[\"x.py:f\"]\ny_py_g[\"y.py:g\"]\ny_py_g --> x_py_f"
	if got := Mermaid(g); got != want {
		t.Errorf("mermaid:\n%s\nwant:\n%s", got, want)
	}
	if g.Resolution == "" {
		t.Error("expected resolution note")
	}
}

func TestBuildProject_ExternalAndAttribute(t *testing.T) {
	units := []source.Unit{
		{Path: "pkg/util.py", Text: []byte("def slugify(s):\n    return s.lower()\n")},
		{Path: "main.py", Text: []byte("def run():\n    util.slugify('A')\n    requests.get(url)\n")},
	}
	g := BuildProject(context.Background(), units)
	if !hasEdge(g, "main.py:run", "pkg/util.py:slugify") {
		t.Errorf("attribute call unresolved: %v", g.Edges)
	}
	if !hasEdge(g, "main.py:run", "external::requests.get") {
		t.Errorf("missing external edge: %v", g.Edges)
	}
	if !hasEdge(g, "pkg/util.py:slugify", "external::s.lower") {
		t.Errorf("missing s.lower edge: %v", g.Edges)
	}
	for _, n := range g.Nodes {
		if n.Key == "external::requests.get" {
			if n.Label != "requests.get" || n.File != "external" || n.Kind != KindExternal {
				t.Errorf("external node: %+v", n)
			}
		}
	}
}

func TestBuildProject_AmbiguousFanOut(t *testing.T) {
	units := []source.Unit{
		{Path: "a.py", Text: []byte("def helper():\n    pass\n")},
		{Path: "b.py", Text: []byte("def helper():\n    pass\n")},
		{Path: "c.py", Text: []byte("def main():\n    helper()\n")},
	}
	g := BuildProject(context.Background(), units)
	if !hasEdge(g, "c.py:main", "a.py:helper") || !hasEdge(g, "c.py:main", "b.py:helper") {
		t.Errorf("expected fan-out to both helpers: %v", g.Edges)
	}
}

func TestBuildProject_MethodCallerNotRendered(t *testing.T) {
	units := []source.Unit{
		{Path: "a.py", Text: []byte("class A:\n    def m(self):\n        run()\n")},
		{Path: "b.py", Text: []byte("def run():\n    pass\n")},
	}
	g := BuildProject(context.Background(), units)
	if !hasEdge(g, "a.py:m", "b.py:run") {
		t.Fatalf("expected edge from method: %v", g.Edges)
	}
	if g.Metadata.DefinedFunctions != 1 {
		t.Errorf("methods must not be defined nodes: %+v", g.Metadata)
	}
	if strings.Contains(Mermaid(g), "-->") {
		t.Errorf("edge without caller node rendered:\n%s", Mermaid(g))
	}
}

func TestBuildProject_ParseFailureSkipped(t *testing.T) {
	units := []source.Unit{
		{Path: "bad.py", Text: []byte("def (:\n")},
		{Path: "good.py", Text: []byte("def ok():\n    pass\n")},
	}
	g := BuildProject(context.Background(), units)
	if len(g.Files) != 2 {
		t.Fatalf("files: %d", len(g.Files))
	}
	if g.Files[0].Parsed || g.Files[0].Error == "" {
		t.Errorf("bad.py info: %+v", g.Files[0])
	}
	if !g.Files[1].Parsed || g.Files[1].Functions != 1 || g.Files[1].Digest == "" {
		t.Errorf("good.py info: %+v", g.Files[1])
	}
	if g.Metadata.DefinedFunctions != 1 {
		t.Errorf("metadata: %+v", g.Metadata)
	}
}

func TestBuildProject_Deterministic(t *testing.T) {
	units := []source.Unit{
		{Path: "x.py", Text: []byte("def f():\n    g()\n    h()\n")},
		{Path: "y.py", Text: []byte("def g():\n    f()\n    print(1)\n")},
		{Path: "z.py", Text: []byte("def h():\n    os.getcwd()\n")},
	}
	first := BuildProject(context.Background(), units)
	reversed := []source.Unit{units[2], units[1], units[0]}
	for i := 0; i < 5; i++ {
		again := BuildProject(context.Background(), reversed)
		if Mermaid(again) != Mermaid(first) || DOT(again) != DOT(first) {
			t.Fatalf("output differs between runs:\n%s\n---\n%s", Mermaid(first), Mermaid(again))
		}
	}
}

func TestBuildProject_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := BuildProject(ctx, []source.Unit{{Path: "x.py", Text: []byte("def f():\n    pass\n")}})
	if g.Error == "" {
		t.Error("expected cancellation error")
	}
}

func TestWithSQLQueries(t *testing.T) {
	g := BuildFile([]byte("def f():\n    pass\n"))
	withCount := g.WithSQLQueries(3)
	if withCount.Metadata.SQLQueries == nil || *withCount.Metadata.SQLQueries != 3 {
		t.Errorf("sql count not merged: %+v", withCount.Metadata)
	}
	if g.Metadata.SQLQueries != nil {
		t.Error("original graph mutated")
	}
}

func TestDOT_ProjectDirection(t *testing.T) {
	g := BuildProject(context.Background(), []source.Unit{{Path: "m.py", Text: []byte("def a():\n    b()\n")}})
	out := DOT(g)
	for _, want := range []string{"digraph {", "rankdir=LR", `m_py_a [label="m.py:a"]`, "m_py_a -> external_b"} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT missing %q:\n%s", want, out)
		}
	}
}

func TestFunctionRegistry(t *testing.T) {
	reg := NewFunctionRegistry()
	reg.Register("f", "b.py:f")
	reg.Register("f", "a.py:f")
	reg.Register("f", "a.py:f")

	got := reg.FindByName("f")
	if strings.Join(got, ",") != "a.py:f,b.py:f" {
		t.Errorf("FindByName: %v", got)
	}
	if reg.Size() != 2 || !reg.Exists("a.py:f") || reg.Exists("c.py:f") {
		t.Errorf("registry state wrong: size=%d", reg.Size())
	}
	if reg.FindByName("missing") != nil {
		t.Error("expected nil for unknown name")
	}
}
