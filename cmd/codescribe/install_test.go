package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// setTestHome overrides the home directory for both Unix (HOME) and Windows (USERPROFILE).
func setTestHome(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func readServers(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	servers, _ := root["mcpServers"].(map[string]any)
	return servers
}

func TestInstallEditorMCP_PreservesOtherServers(t *testing.T) {
	dir := t.TempDir()
	ed := editorConfig{name: "Cursor", path: filepath.Join(dir, ".cursor", "mcp.json")}
	if err := os.MkdirAll(filepath.Dir(ed.path), 0o750); err != nil {
		t.Fatal(err)
	}
	existing := `{"mcpServers": {"other": {"command": "/usr/bin/other"}}, "theme": "dark"}`
	if err := os.WriteFile(ed.path, []byte(existing), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := installEditorMCP("/opt/bin/codescribe", ed, installConfig{out: &out}); err != nil {
		t.Fatal(err)
	}
	servers := readServers(t, ed.path)
	if _, ok := servers["other"]; !ok {
		t.Error("existing server entry dropped")
	}
	entry, ok := servers[mcpServerKey].(map[string]any)
	if !ok || entry["command"] != "/opt/bin/codescribe" {
		t.Fatalf("entry: %v", servers[mcpServerKey])
	}
	args, _ := entry["args"].([]any)
	if len(args) != 1 || args[0] != "serve" {
		t.Errorf("args: %v", entry["args"])
	}
}

func TestInstallEditorMCP_DryRun(t *testing.T) {
	ed := editorConfig{name: "Windsurf", path: filepath.Join(t.TempDir(), "mcp_config.json")}
	var out bytes.Buffer
	if err := installEditorMCP("/bin/codescribe", ed, installConfig{dryRun: true, out: &out}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ed.path); !os.IsNotExist(err) {
		t.Error("dry run wrote the config")
	}
	if !strings.Contains(out.String(), "[dry-run]") {
		t.Errorf("output: %s", out.String())
	}
}

func TestRemoveEditorMCP(t *testing.T) {
	ed := editorConfig{name: "Cursor", path: filepath.Join(t.TempDir(), "mcp.json")}
	var out bytes.Buffer
	cfg := installConfig{out: &out}
	if err := installEditorMCP("/bin/codescribe", ed, cfg); err != nil {
		t.Fatal(err)
	}
	if err := removeEditorMCP(ed, cfg); err != nil {
		t.Fatal(err)
	}
	if _, ok := readServers(t, ed.path)[mcpServerKey]; ok {
		t.Error("entry not removed")
	}

	missing := editorConfig{name: "Cursor", path: filepath.Join(t.TempDir(), "absent.json")}
	if err := removeEditorMCP(missing, cfg); err != nil {
		t.Errorf("missing file: %v", err)
	}
}

func TestEditorConfigsUseHome(t *testing.T) {
	home := t.TempDir()
	setTestHome(t, home)
	for _, ed := range editorConfigs() {
		if !strings.HasPrefix(ed.path, home) {
			t.Errorf("%s config outside home: %s", ed.name, ed.path)
		}
	}
}
