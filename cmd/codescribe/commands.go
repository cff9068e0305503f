package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescribe-dev/codescribe/internal/analyze"
	"github.com/codescribe-dev/codescribe/internal/callgraph"
	"github.com/codescribe-dev/codescribe/internal/metrics"
	"github.com/codescribe-dev/codescribe/internal/snippet"
	"github.com/codescribe-dev/codescribe/internal/sqlscan"
)

// readInput reads a file argument, or stdin when the argument is "-" or missing.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGraph(cmd *cobra.Command, g *callgraph.Graph, format string, extra any) error {
	w := cmd.OutOrStdout()
	if g.Error != "" && format != "json" {
		fmt.Fprintln(cmd.ErrOrStderr(), g.Error)
	}
	switch format {
	case "mermaid":
		_, err := fmt.Fprintln(w, callgraph.Mermaid(g))
		return err
	case "dot":
		_, err := fmt.Fprint(w, callgraph.DOT(g))
		return err
	case "json":
		if extra != nil {
			return printJSON(w, extra)
		}
		return printJSON(w, g)
	}
	return fmt.Errorf("unknown format %q (want mermaid, dot or json)", format)
}

func newGraphCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph [file|-]",
		Short: "Print the call graph of one Python file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return printGraph(cmd, callgraph.BuildFile([]byte(code)), format, nil)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format: mermaid, dot or json")
	return cmd
}

func newProjectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "project <dir|archive>",
		Short: "Print the cross-file call graph of a project directory or .zip/.tar.gz archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			var rep *analyze.ProjectReport
			if info.IsDir() {
				rep, err = analyzer.Directory(cmd.Context(), args[0])
			} else {
				rep, err = analyzer.Archive(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printGraph(cmd, rep.Visualizer.Graph, format, rep)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format: mermaid, dot or json")
	return cmd
}

func newBundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bundle <dir>",
		Short: "Print every Python file of a project under \"# File:\" headers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := analyzer.Bundle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
}

func newSQLCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sql [file|-]",
		Short: "List string literals that look like SQL statements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			queries := sqlscan.Extract([]byte(code))
			if asJSON {
				if queries == nil {
					queries = []sqlscan.Query{}
				}
				return printJSON(cmd.OutOrStdout(), queries)
			}
			for _, q := range queries {
				fmt.Fprintf(cmd.OutOrStdout(), "-- %s (parses: %t)\n%s\n\n", q.Statement, q.Parses, q.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newTraceCmd() *cobra.Command {
	var (
		driver string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "trace [file|-]",
		Short: "Execute code plus a driver snippet under a line tracer",
		Long:  "Runs the code in a child Python interpreter with a restricted set of builtins.\nOnly trace code you are willing to execute.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			res := analyzer.Tracer().Run(cmd.Context(), code, driver)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Report)
			if res.Failed() {
				return fmt.Errorf("trace failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&driver, "input", "i", "", "driver statements run after the code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newIsolateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "isolate <function> [file|-]",
		Short: "Print the source of one top-level function",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}
			src, err := snippet.IsolateFunction(code, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), src)
			return nil
		},
	}
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics [file|-]",
		Short: "Print complexity and line metrics as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), metrics.Compute(code))
		},
	}
}
