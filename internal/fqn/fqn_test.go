package fqn

import "testing"

func TestCompute(t *testing.T) {
	if got := Compute("pkg/mod.py", "run"); got != "pkg/mod.py:run" {
		t.Errorf("Compute = %q", got)
	}
}

func TestExternal(t *testing.T) {
	qn := External("os.path.join")
	if qn != "external::os.path.join" {
		t.Errorf("External = %q", qn)
	}
	if !IsExternal(qn) {
		t.Error("IsExternal should be true")
	}
	if IsExternal("x.py:f") {
		t.Error("IsExternal should be false for defined ids")
	}
}

func TestSimpleName(t *testing.T) {
	tests := []struct {
		callee, base, simple string
	}{
		{"f", "f", "f"},
		{"self.helper", "self.helper", "helper"},
		{"factory(cfg).run", "factory", "factory"},
		{"a[0].b", "a[0].b", "b"},
		{"(a or b)", "", ""},
		{"lambda x: x", "lambda", "lambda"},
	}
	for _, tt := range tests {
		if got := BaseCallee(tt.callee); got != tt.base {
			t.Errorf("BaseCallee(%q) = %q, want %q", tt.callee, got, tt.base)
		}
		if got := SimpleName(tt.callee); got != tt.simple {
			t.Errorf("SimpleName(%q) = %q, want %q", tt.callee, got, tt.simple)
		}
	}
}
