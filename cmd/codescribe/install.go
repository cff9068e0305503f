package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

const mcpServerKey = "codescribe"

// installConfig holds settings for the install/uninstall commands.
type installConfig struct {
	dryRun bool
	out    io.Writer
}

// editorConfig is an editor that reads MCP servers from a JSON file.
type editorConfig struct {
	name string
	path string
}

func editorConfigs() []editorConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []editorConfig{
		{name: "Cursor", path: filepath.Join(home, ".cursor", "mcp.json")},
		{name: "Windsurf", path: filepath.Join(home, ".codeium", "windsurf", "mcp_config.json")},
	}
}

func newInstallCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register the codescribe MCP server with Claude Code, Cursor and Windsurf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := installConfig{dryRun: dryRun, out: cmd.OutOrStdout()}
			binaryPath, err := detectBinaryPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(cfg.out, "codescribe %s install\nBinary: %s\n\n", version, binaryPath)

			if claudePath := findCLI("claude"); claudePath != "" {
				fmt.Fprintf(cfg.out, "[Claude Code] detected (%s)\n", claudePath)
				registerClaudeCodeMCP(binaryPath, claudePath, cfg)
			} else {
				fmt.Fprintln(cfg.out, "[Claude Code] not found, skipping")
			}
			for _, ed := range editorConfigs() {
				if err := installEditorMCP(binaryPath, ed, cfg); err != nil {
					fmt.Fprintf(cfg.out, "  ⚠ %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would change")
	return cmd
}

func newUninstallCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the codescribe MCP server registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := installConfig{dryRun: dryRun, out: cmd.OutOrStdout()}
			if claudePath := findCLI("claude"); claudePath != "" {
				if cfg.dryRun {
					fmt.Fprintf(cfg.out, "  [dry-run] Would run: %s mcp remove -s user %s\n", claudePath, mcpServerKey)
				} else if err := execCLI(claudePath, "mcp", "remove", "-s", "user", mcpServerKey); err != nil {
					fmt.Fprintf(cfg.out, "  ⚠ Claude Code MCP deregistration: %v\n", err)
				}
			}
			for _, ed := range editorConfigs() {
				if err := removeEditorMCP(ed, cfg); err != nil {
					fmt.Fprintf(cfg.out, "  ⚠ %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would change")
	return cmd
}

func detectBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("detect binary: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}
	return resolved, nil
}

func registerClaudeCodeMCP(binaryPath, claudePath string, cfg installConfig) {
	if cfg.dryRun {
		fmt.Fprintf(cfg.out, "  [dry-run] Would run: %s mcp add --scope user %s -- %s serve\n", claudePath, mcpServerKey, binaryPath)
		return
	}
	// Re-registering fails when an entry exists; remove it first.
	_ = execCLI(claudePath, "mcp", "remove", "-s", "user", mcpServerKey)
	if err := execCLI(claudePath, "mcp", "add", "--scope", "user", mcpServerKey, "--", binaryPath, "serve"); err != nil {
		fmt.Fprintf(cfg.out, "  ⚠ MCP registration failed: %v\n", err)
		return
	}
	fmt.Fprintln(cfg.out, "  ✓ MCP server registered (scope: user)")
}

// findCLI locates a CLI binary by name.
func findCLI(name string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidates := []string{
		"/usr/local/bin/" + name,
		filepath.Join(home, ".npm", "bin", name),
		filepath.Join(home, ".local", "bin", name),
	}
	if runtime.GOOS == "darwin" {
		candidates = append(candidates, "/opt/homebrew/bin/"+name)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// execCLI runs a CLI command and returns any error.
func execCLI(path string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// installEditorMCP upserts our server entry in an editor's JSON config file,
// keeping every other entry.
func installEditorMCP(binaryPath string, ed editorConfig, cfg installConfig) error {
	fmt.Fprintf(cfg.out, "[%s] MCP config: %s\n", ed.name, ed.path)
	if cfg.dryRun {
		fmt.Fprintf(cfg.out, "  [dry-run] Would upsert %s in %s\n", mcpServerKey, ed.path)
		return nil
	}

	root := make(map[string]any)
	if data, err := os.ReadFile(ed.path); err == nil {
		if jsonErr := json.Unmarshal(data, &root); jsonErr != nil {
			fmt.Fprintf(cfg.out, "  ⚠ Invalid JSON in %s, overwriting\n", ed.path)
			root = make(map[string]any)
		}
	}
	servers, ok := root["mcpServers"].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	servers[mcpServerKey] = map[string]any{
		"command": binaryPath,
		"args":    []string{"serve"},
	}
	root["mcpServers"] = servers

	if err := os.MkdirAll(filepath.Dir(ed.path), 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(ed.path), err)
	}
	if err := writeJSON(ed.path, root); err != nil {
		return err
	}
	fmt.Fprintf(cfg.out, "  ✓ MCP server registered in %s\n", ed.path)
	return nil
}

// removeEditorMCP deletes our server entry. A missing file or entry is not an error.
func removeEditorMCP(ed editorConfig, cfg installConfig) error {
	data, err := os.ReadFile(ed.path)
	if err != nil {
		return nil
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil
	}
	servers, ok := root["mcpServers"].(map[string]any)
	if !ok {
		return nil
	}
	if _, exists := servers[mcpServerKey]; !exists {
		return nil
	}

	fmt.Fprintf(cfg.out, "[%s] MCP config: %s\n", ed.name, ed.path)
	if cfg.dryRun {
		fmt.Fprintf(cfg.out, "  [dry-run] Would remove %s from %s\n", mcpServerKey, ed.path)
		return nil
	}
	delete(servers, mcpServerKey)
	root["mcpServers"] = servers
	if err := writeJSON(ed.path, root); err != nil {
		return err
	}
	fmt.Fprintf(cfg.out, "  ✓ Removed %s from %s\n", mcpServerKey, ed.path)
	return nil
}

func writeJSON(path string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
