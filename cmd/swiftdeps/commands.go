// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/swiftdeps/services/depgraph"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// cliFlags holds the persistent flags. Only flags the user set override the
// loaded configuration.
type cliFlags struct {
	root           string
	configPath     string
	output         string
	debounce       time.Duration
	poll           time.Duration
	workers        int
	astSource      string
	descendUntyped bool
	logLevel       string
	logJSON        bool
	httpAddr       string
	noCache        bool

	limit int
}

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "swiftdeps: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &cliFlags{}

	root := &cobra.Command{
		Use:   "swiftdeps",
		Short: "Extract and watch the structural dependency graph of a Swift project",
		Long: `swiftdeps classifies the declarations and calls of every Swift file into
dependency buckets (imports, singletons, SwiftUI property wrappers, Core Data
models, network and logging calls, navigation and lifecycle triggers) and
writes the result to dependencies.json.

Without a subcommand it runs a full pass and then watches the project,
re-extracting changed files once edits have been quiet for the debounce
window.

Examples:
  swiftdeps
  swiftdeps extract --root ~/src/MyApp
  swiftdeps context --limit 10
  swiftdeps watch --http-addr 127.0.0.1:7420`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, f, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.root, "root", "", "project root (default: nearest ancestor with an Xcode project or Package.swift)")
	pf.StringVar(&f.configPath, "config", "", "config file (default: <root>/.swiftdeps.yaml)")
	pf.StringVar(&f.output, "output", "", "graph file, relative to the root unless absolute")
	pf.DurationVar(&f.debounce, "debounce", 0, "quiet period before re-extraction")
	pf.DurationVar(&f.poll, "poll", 0, "how often the quiet period is checked")
	pf.IntVar(&f.workers, "workers", 0, "concurrent file extractions (0 = one per CPU)")
	pf.StringVar(&f.astSource, "ast-source", "", "structure source: treesitter or sourcekitten")
	pf.BoolVar(&f.descendUntyped, "descend-untyped", false, "classify below nodes without a kind")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&f.logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&f.httpAddr, "http-addr", "", "serve the read API on this address while watching")
	pf.BoolVar(&f.noCache, "no-cache", false, "disable the record cache")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a full pass, then keep the graph current (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, f, stderr)
		},
	}

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Run one full pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, f, stdout, stderr)
		},
	}

	contextCmd := &cobra.Command{
		Use:   "context",
		Short: "Print the first files of the graph, regenerating it when needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runContext(cmd, f, stdout, stderr)
		},
	}
	contextCmd.Flags().IntVar(&f.limit, "limit", 5, "number of files to print")

	root.AddCommand(watchCmd, extractCmd, contextCmd)
	return root
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runWatch(cmd *cobra.Command, f *cliFlags, stderr io.Writer) error {
	a, err := newApp(cmd, f, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if a.config.HTTPAddr == "" {
		return a.svc.Watch(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.svc.Watch(gctx)
	})
	g.Go(func() error {
		a.logger.Info("serving read API", "addr", a.config.HTTPAddr)
		return depgraph.Serve(gctx, a.config.HTTPAddr, depgraph.NewRouter(a.svc, a.config.Telemetry.ServiceName))
	})
	return g.Wait()
}

func runExtract(cmd *cobra.Command, f *cliFlags, stdout, stderr io.Writer) error {
	a, err := newApp(cmd, f, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.svc.Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "extracted %d files (%d cached, %d skipped) into %s in %s\n",
		res.Classified, res.CacheHits, res.Skipped, a.svc.Config().Output, res.Duration.Round(time.Millisecond))
	return nil
}

func runContext(cmd *cobra.Command, f *cliFlags, stdout, stderr io.Writer) error {
	a, err := newApp(cmd, f, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	limit := a.config.ContextLimit
	if cmd.Flags().Changed("limit") {
		limit = f.limit
	}
	files, err := a.svc.ContextFiles(cmd.Context(), limit)
	if err != nil {
		return err
	}
	for _, id := range files {
		fmt.Fprintln(stdout, id)
	}
	return nil
}
