package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codescribe-dev/codescribe/internal/analyze"
	"github.com/codescribe-dev/codescribe/internal/config"
	"github.com/codescribe-dev/codescribe/internal/tools"
)

var version = "dev"

var (
	configDir string
	verbose   bool

	cfg      *config.Config
	analyzer *analyze.Analyzer
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codescribe",
		Short:         "Static and dynamic analysis of Python source",
		Long:          "codescribe builds call graphs, extracts embedded SQL, traces execution and\nmeasures complexity of Python code, from the command line or as an MCP server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			// stdout carries command output and the MCP stream.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			cfg = config.Load(configDir)
			analyzer = analyze.New(cfg)
		},
	}
	root.SetVersionTemplate("codescribe {{.Version}}\n")
	root.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding .codescribe.yaml and .env")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newServeCmd(),
		newGraphCmd(),
		newProjectCmd(),
		newBundleCmd(),
		newSQLCmd(),
		newTraceCmd(),
		newIsolateCmd(),
		newMetricsCmd(),
		newInstallCmd(),
		newUninstallCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := tools.NewServer(analyzer, version)
			if err := srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
