package snippet

import (
	"errors"
	"testing"
)

const module = `import os

@cache
def load(path):
    return open(path).read()

class Loader:
    def run(self):
        pass

async def fetch():
    await go()

def load(path, mode="r"):
    return path
`

func TestIsolateFunction(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"fetch", "async def fetch():\n    await go()"},
		{"load", "@cache\ndef load(path):\n    return open(path).read()"},
	}
	for _, tt := range tests {
		got, err := IsolateFunction(module, tt.name)
		if err != nil {
			t.Fatalf("IsolateFunction(%s): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("IsolateFunction(%s):\n%s\nwant:\n%s", tt.name, got, tt.want)
		}
	}
}

func TestIsolateFunction_Decorated(t *testing.T) {
	got, err := IsolateFunction("@cache\ndef only():\n    return 1\n", "only")
	if err != nil {
		t.Fatal(err)
	}
	if got != "@cache\ndef only():\n    return 1" {
		t.Errorf("got %q", got)
	}
}

func TestIsolateFunction_NotFound(t *testing.T) {
	for _, name := range []string{"", "run", "missing"} {
		if _, err := IsolateFunction(module, name); !errors.Is(err, ErrNotFound) {
			t.Errorf("IsolateFunction(%q): expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestIsolateFunction_ParseError(t *testing.T) {
	_, err := IsolateFunction("def (:\n", "f")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected parse error, got %v", err)
	}
}
